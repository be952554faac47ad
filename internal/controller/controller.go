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

// Package controller drives the STOPPED/PLAYING/PAUSED/SEEKING state
// machine: it is the only code that is allowed to change
// playback.Context's state word, clock, and cursors together.
package controller

import (
	"sort"
	"sync"
	"time"

	"github.com/e1z0/cryptvaultplayer/internal/mp4"
	"github.com/e1z0/cryptvaultplayer/internal/playback"
)

const (
	DefaultVolumeStep = 0.1
	MinVolume         = 0.0
	MaxVolume         = 3.0
	DefaultSeekStep   = 1000 * time.Millisecond
)

// Controller serializes state transitions; only one of
// Play/Pause/Resume/Seek/Stop may run at a time.
type Controller struct {
	mu  sync.Mutex
	ctx *playback.Context

	videoTimescale uint32
	audioTimescale uint32

	videoTimes []int64 // ms, parallel to ctx.VideoTrack.Samples
	audioTimes []int64
}

// New builds a Controller and precomputes each track's millisecond
// presentation-time index, used for binary-searching seek targets.
func New(ctx *playback.Context) *Controller {
	c := &Controller{ctx: ctx}
	if ctx.VideoTrack != nil {
		c.videoTimescale = ctx.VideoTrack.Timescale
		c.videoTimes = presentationTimesMs(ctx.VideoTrack.Samples, c.videoTimescale)
	}
	if ctx.AudioTrack != nil {
		c.audioTimescale = ctx.AudioTrack.Timescale
		c.audioTimes = presentationTimesMs(ctx.AudioTrack.Samples, c.audioTimescale)
	}
	return c
}

func presentationTimesMs(samples []mp4.Sample, timescale uint32) []int64 {
	out := make([]int64, len(samples))
	for i, sm := range samples {
		if timescale == 0 {
			out[i] = int64(sm.PresentationTime)
			continue
		}
		out[i] = int64(sm.PresentationTime * 1000 / uint64(timescale))
	}
	return out
}

// Play starts playback from the beginning.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.ctx.VideoCursor.Store(0)
	c.ctx.AudioCursor.Store(0)
	c.ctx.Start(now)
}

// Pause freezes the clock.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.State() != playback.StatePlaying {
		return
	}
	c.ctx.Pause(time.Now())
}

// Resume continues from the paused position.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.State() != playback.StatePaused {
		return
	}
	c.ctx.Resume(time.Now())
}

// TogglePause flips between PLAYING and PAUSED.
func (c *Controller) TogglePause() {
	switch c.ctx.State() {
	case playback.StatePlaying:
		c.Pause()
	case playback.StatePaused:
		c.Resume()
	}
}

// Stop halts playback and resets cursors to the start, leaving state
// STOPPED. It permanently shuts down every frame queue, waking any
// pacer/presenter worker blocked in Pop so it can return; callers must
// not Play again on a Controller after Stop.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx.SetState(playback.StateStopped)
	c.ctx.VideoCursor.Store(0)
	c.ctx.AudioCursor.Store(0)
	c.shutdownQueues()
}

// SeekTo jumps to targetMs: it enters SEEKING, drains every queue,
// repositions both track cursors to the last sample at or before the
// target, signals a decoder reset, rebases the clock, then resumes the
// previous running state (PLAYING stays PLAYING, anything else lands on
// PAUSED so a seek never silently starts playback).
func (c *Controller) SeekTo(targetMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if targetMs < 0 {
		targetMs = 0
	}

	wasPlaying := c.ctx.State() == playback.StatePlaying
	c.ctx.SetState(playback.StateSeeking)
	c.drainQueues()

	if c.ctx.VideoTrack != nil {
		c.ctx.VideoCursor.Store(int64(searchMs(c.videoTimes, targetMs)))
		c.ctx.VideoResetFence.Store(true)
	}
	if c.ctx.AudioTrack != nil {
		c.ctx.AudioCursor.Store(int64(searchMs(c.audioTimes, targetMs)))
		c.ctx.AudioResetFence.Store(true)
	}

	now := time.Now()
	c.ctx.RebaseClock(now, targetMs)

	if wasPlaying {
		c.ctx.SetState(playback.StatePlaying)
	} else {
		c.ctx.Pause(now)
	}
}

// SeekRelative seeks by +/- delta from the current playback time.
func (c *Controller) SeekRelative(delta time.Duration) {
	now := time.Now()
	cur := c.ctx.PlaybackTimeMs(now)
	c.SeekTo(cur + delta.Milliseconds())
}

// AdjustVolume steps the volume by delta, clamped to [MinVolume,
// MaxVolume].
func (c *Controller) AdjustVolume(delta float32) {
	v := c.ctx.Volume() + delta
	if v < MinVolume {
		v = MinVolume
	}
	if v > MaxVolume {
		v = MaxVolume
	}
	c.ctx.SetVolume(v)
}

// drainQueues empties every queue for an in-progress seek, without
// preventing further use: the drain flag is cleared again before
// Drain returns.
func (c *Controller) drainQueues() {
	c.ctx.RawVideoQ.Drain()
	c.ctx.ReadyVideoQ.Drain()
	c.ctx.RawAudioQ.Drain()
	c.ctx.ReadyAudioQ.Drain()
}

// shutdownQueues permanently unblocks every Push/Pop waiter; used only
// at teardown.
func (c *Controller) shutdownQueues() {
	c.ctx.RawVideoQ.Shutdown()
	c.ctx.ReadyVideoQ.Shutdown()
	c.ctx.RawAudioQ.Shutdown()
	c.ctx.ReadyAudioQ.Shutdown()
}

// searchMs returns the index of the last entry <= targetMs, or 0 if
// none qualifies.
func searchMs(times []int64, targetMs int64) int {
	if len(times) == 0 {
		return 0
	}
	i := sort.Search(len(times), func(i int) bool { return times[i] > targetMs })
	if i == 0 {
		return 0
	}
	return i - 1
}
