/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * CryptVaultPlayer
 * Copyright (C) 2026 e1z0 <e1z0@icloud.com>
 *
 * This file is part of CryptVaultPlayer.
 *
 * CryptVaultPlayer is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * CryptVaultPlayer is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with CryptVaultPlayer.  If not, see <https://www.gnu.org/licenses/>.
 */

package controller

import (
	"testing"
	"time"

	"github.com/e1z0/cryptvaultplayer/internal/mp4"
	"github.com/e1z0/cryptvaultplayer/internal/playback"
)

// samplesAtMs builds a track with one sample per listed millisecond value,
// in a 1000Hz timescale so PresentationTime equals milliseconds directly.
func samplesAtMs(kind mp4.Kind, ms ...int64) *mp4.Track {
	samples := make([]mp4.Sample, len(ms))
	for i, m := range ms {
		samples[i] = mp4.Sample{PresentationTime: uint64(m)}
	}
	return &mp4.Track{Kind: kind, Timescale: 1000, Samples: samples}
}

func newTestContext() *playback.Context {
	video := samplesAtMs(mp4.KindVideo, 0, 100, 200, 300, 400, 500)
	audio := samplesAtMs(mp4.KindAudio, 0, 50, 150, 250, 350, 450)
	return playback.New(nil, video, audio)
}

func TestPlayStartsFromZero(t *testing.T) {
	ctx := newTestContext()
	c := New(ctx)
	c.Play()

	if got := ctx.State(); got != playback.StatePlaying {
		t.Fatalf("State() = %v, want PLAYING", got)
	}
	if got := ctx.VideoCursor.Load(); got != 0 {
		t.Fatalf("VideoCursor = %d, want 0", got)
	}
}

func TestTogglePauseFlipsState(t *testing.T) {
	ctx := newTestContext()
	c := New(ctx)
	c.Play()

	c.TogglePause()
	if got := ctx.State(); got != playback.StatePaused {
		t.Fatalf("State() after first toggle = %v, want PAUSED", got)
	}
	c.TogglePause()
	if got := ctx.State(); got != playback.StatePlaying {
		t.Fatalf("State() after second toggle = %v, want PLAYING", got)
	}
}

func TestStopResetsCursorsAndState(t *testing.T) {
	ctx := newTestContext()
	c := New(ctx)
	c.Play()
	ctx.VideoCursor.Store(3)
	ctx.AudioCursor.Store(2)

	c.Stop()
	if got := ctx.State(); got != playback.StateStopped {
		t.Fatalf("State() = %v, want STOPPED", got)
	}
	if got := ctx.VideoCursor.Load(); got != 0 {
		t.Fatalf("VideoCursor = %d, want 0", got)
	}
	if got := ctx.AudioCursor.Load(); got != 0 {
		t.Fatalf("AudioCursor = %d, want 0", got)
	}
}

func TestSeekToRepositionsCursorsAndPreservesPlayingState(t *testing.T) {
	ctx := newTestContext()
	c := New(ctx)
	c.Play()

	c.SeekTo(220) // video: last entry <= 220 is 200 (idx 2); audio: last <= 220 is 150 (idx 2)
	if got := ctx.VideoCursor.Load(); got != 2 {
		t.Fatalf("VideoCursor after SeekTo(220) = %d, want 2", got)
	}
	if got := ctx.AudioCursor.Load(); got != 2 {
		t.Fatalf("AudioCursor after SeekTo(220) = %d, want 2", got)
	}
	if got := ctx.State(); got != playback.StatePlaying {
		t.Fatalf("State() after seek while playing = %v, want PLAYING", got)
	}
	if got := ctx.PlaybackTimeMs(time.Now()); got < 219 || got > 221 {
		t.Fatalf("PlaybackTimeMs after SeekTo(220) = %d, want ~220", got)
	}
}

func TestSeekToWhilePausedStaysPaused(t *testing.T) {
	ctx := newTestContext()
	c := New(ctx)
	c.Play()
	c.Pause()

	c.SeekTo(300)
	if got := ctx.State(); got != playback.StatePaused {
		t.Fatalf("State() after seek while paused = %v, want PAUSED", got)
	}
}

func TestSeekToNegativeClampsToZero(t *testing.T) {
	ctx := newTestContext()
	c := New(ctx)
	c.Play()

	c.SeekTo(-500)
	if got := ctx.VideoCursor.Load(); got != 0 {
		t.Fatalf("VideoCursor after SeekTo(-500) = %d, want 0", got)
	}
	if got := ctx.PlaybackTimeMs(time.Now()); got != 0 {
		t.Fatalf("PlaybackTimeMs after SeekTo(-500) = %d, want 0", got)
	}
}

func TestAdjustVolumeClamps(t *testing.T) {
	ctx := newTestContext()
	c := New(ctx)

	c.AdjustVolume(-5)
	if got := ctx.Volume(); got != MinVolume {
		t.Fatalf("Volume() = %v, want %v", got, MinVolume)
	}
	c.AdjustVolume(10)
	if got := ctx.Volume(); got != MaxVolume {
		t.Fatalf("Volume() = %v, want %v", got, MaxVolume)
	}
}

func TestSearchMsFindsLastEntryAtOrBeforeTarget(t *testing.T) {
	times := []int64{0, 100, 200, 300}

	cases := []struct {
		target int64
		want   int
	}{
		{-10, 0},
		{0, 0},
		{50, 0},
		{100, 1},
		{250, 2},
		{300, 3},
		{9999, 3},
	}
	for _, tc := range cases {
		if got := searchMs(times, tc.target); got != tc.want {
			t.Errorf("searchMs(times, %d) = %d, want %d", tc.target, got, tc.want)
		}
	}
}

func TestSearchMsEmptyReturnsZero(t *testing.T) {
	if got := searchMs(nil, 500); got != 0 {
		t.Fatalf("searchMs(nil, 500) = %d, want 0", got)
	}
}
