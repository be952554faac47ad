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

package playback

import (
	"testing"
	"time"
)

func TestStartAdvancesPlaybackTime(t *testing.T) {
	c := New(nil, nil, nil)
	t0 := time.Now()
	c.Start(t0)

	if got := c.State(); got != StatePlaying {
		t.Fatalf("State() = %v, want PLAYING", got)
	}
	if got := c.PlaybackTimeMs(t0); got != 0 {
		t.Fatalf("PlaybackTimeMs(t0) = %d, want 0", got)
	}
	later := t0.Add(250 * time.Millisecond)
	if got := c.PlaybackTimeMs(later); got != 250 {
		t.Fatalf("PlaybackTimeMs(t0+250ms) = %d, want 250", got)
	}
}

func TestPauseFreezesClock(t *testing.T) {
	c := New(nil, nil, nil)
	t0 := time.Now()
	c.Start(t0)

	pauseAt := t0.Add(100 * time.Millisecond)
	c.Pause(pauseAt)
	if got := c.State(); got != StatePaused {
		t.Fatalf("State() = %v, want PAUSED", got)
	}

	for _, d := range []time.Duration{0, 50 * time.Millisecond, 500 * time.Millisecond} {
		if got := c.PlaybackTimeMs(pauseAt.Add(d)); got != 100 {
			t.Fatalf("PlaybackTimeMs frozen at %v = %d, want 100", d, got)
		}
	}
}

func TestResumeContinuesSeamlessly(t *testing.T) {
	c := New(nil, nil, nil)
	t0 := time.Now()
	c.Start(t0)

	pauseAt := t0.Add(100 * time.Millisecond)
	c.Pause(pauseAt)

	resumeAt := pauseAt.Add(2 * time.Second) // paused for 2s of wall-clock
	c.Resume(resumeAt)
	if got := c.State(); got != StatePlaying {
		t.Fatalf("State() = %v, want PLAYING", got)
	}
	if got := c.PlaybackTimeMs(resumeAt); got != 100 {
		t.Fatalf("PlaybackTimeMs at resume instant = %d, want 100 (pause gap must not count)", got)
	}
	if got := c.PlaybackTimeMs(resumeAt.Add(50 * time.Millisecond)); got != 150 {
		t.Fatalf("PlaybackTimeMs 50ms after resume = %d, want 150", got)
	}
}

func TestRebaseClockSetsExactPlaybackTime(t *testing.T) {
	c := New(nil, nil, nil)
	now := time.Now()
	c.Start(now)

	c.RebaseClock(now, 5000)
	if got := c.PlaybackTimeMs(now); got != 5000 {
		t.Fatalf("PlaybackTimeMs after RebaseClock(now, 5000) = %d, want 5000", got)
	}
	if got := c.PlaybackTimeMs(now.Add(10 * time.Millisecond)); got != 5010 {
		t.Fatalf("PlaybackTimeMs 10ms later = %d, want 5010", got)
	}
}

func TestVolumeClampsToRange(t *testing.T) {
	c := New(nil, nil, nil)

	c.SetVolume(-1)
	if got := c.Volume(); got != 0 {
		t.Fatalf("Volume() after SetVolume(-1) = %v, want 0", got)
	}
	c.SetVolume(10)
	if got := c.Volume(); got != 3 {
		t.Fatalf("Volume() after SetVolume(10) = %v, want 3", got)
	}
	c.SetVolume(1.5)
	if got := c.Volume(); got != 1.5 {
		t.Fatalf("Volume() after SetVolume(1.5) = %v, want 1.5", got)
	}
}

func TestNewDefaultsToStoppedAtFullVolume(t *testing.T) {
	c := New(nil, nil, nil)
	if got := c.State(); got != StateStopped {
		t.Fatalf("State() = %v, want STOPPED", got)
	}
	if got := c.Volume(); got != 1.0 {
		t.Fatalf("Volume() = %v, want 1.0", got)
	}
}
