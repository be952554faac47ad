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

// Package playback holds the state shared across every pipeline worker:
// the state machine word, the monotonic playback clock, per-track
// cursors and seek fences, the volume atomic, and the four frame
// queues.
package playback

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e1z0/cryptvaultplayer/internal/memstream"
	"github.com/e1z0/cryptvaultplayer/internal/mp4"
	"github.com/e1z0/cryptvaultplayer/internal/queue"
)

// State is the controller's state-machine word.
type State int32

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateSeeking
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateSeeking:
		return "SEEKING"
	default:
		return "UNKNOWN"
	}
}

// VideoFrame is a decoded, not-yet-presented I420 picture.
type VideoFrame struct {
	PTSMs   int64
	Width   int
	Height  int
	Planes  [3][]byte
	Strides [3]int
}

// AudioFrame is a decoded, not-yet-presented block of interleaved S16
// PCM.
type AudioFrame struct {
	PTSMs      int64
	SampleRate int
	Channels   int
	FrameSize  int
	PCM        []int16
}

// rawQueueCapacity is the bounded raw-frame queue depth; the
// reader+decoder stage blocks once it is full, which paces decoding to
// the slower of the pacer/presenter chain.
const rawQueueCapacity = 20

// Context is the state the controller and every worker goroutine share.
// Its cursors, fences, and volume are atomics; its clock fields are
// guarded by clockMu since pause/resume/seek read-modify-write them
// together.
type Context struct {
	Stream     *memstream.Stream
	VideoTrack *mp4.Track
	AudioTrack *mp4.Track

	state atomic.Int32

	clockMu   sync.Mutex
	baseClock time.Time
	pauseTime time.Time

	VideoCursor atomic.Int64
	AudioCursor atomic.Int64

	VideoResetFence atomic.Bool
	AudioResetFence atomic.Bool

	volumeBits atomic.Uint32

	RawVideoQ   *queue.Queue[VideoFrame]
	ReadyVideoQ *queue.Queue[VideoFrame]
	RawAudioQ   *queue.Queue[AudioFrame]
	ReadyAudioQ *queue.Queue[AudioFrame]
}

// New builds a Context over an already-parsed stream and track pair,
// with state STOPPED and the clock armed at "now" (so PlaybackTimeMs is
// 0 until Start is called).
func New(s *memstream.Stream, video, audio *mp4.Track) *Context {
	c := &Context{
		Stream:      s,
		VideoTrack:  video,
		AudioTrack:  audio,
		RawVideoQ:   queue.New[VideoFrame](rawQueueCapacity),
		ReadyVideoQ: queue.New[VideoFrame](0),
		RawAudioQ:   queue.New[AudioFrame](rawQueueCapacity),
		ReadyAudioQ: queue.New[AudioFrame](0),
	}
	c.state.Store(int32(StateStopped))
	now := time.Now()
	c.baseClock = now
	c.pauseTime = now
	c.SetVolume(1.0)
	return c
}

func (c *Context) State() State { return State(c.state.Load()) }
func (c *Context) SetState(s State) { c.state.Store(int32(s)) }

func (c *Context) Volume() float32 {
	return math.Float32frombits(c.volumeBits.Load())
}

func (c *Context) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 3 {
		v = 3
	}
	c.volumeBits.Store(math.Float32bits(v))
}

// Start arms the clock at the given instant and switches to PLAYING. Call
// once, from STOPPED.
func (c *Context) Start(now time.Time) {
	c.clockMu.Lock()
	c.baseClock = now
	c.pauseTime = time.Time{}
	c.clockMu.Unlock()
	c.SetState(StatePlaying)
}

// PlaybackTimeMs returns (now - base_clock) while PLAYING. In any other
// state it returns the value frozen at the last recorded pause instant
// (pauseTime - base_clock); when no pause instant is recorded, as when
// SEEKING is entered from PLAYING or STOPPED after Start, it keeps
// returning (now - base_clock).
func (c *Context) PlaybackTimeMs(now time.Time) int64 {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	if c.State() != StatePlaying {
		return c.pausedPlaybackMs(now)
	}
	return now.Sub(c.baseClock).Milliseconds()
}

// pausedPlaybackMs computes the frozen playback time during PAUSED,
// using pauseTime as the reference instant instead of now.
func (c *Context) pausedPlaybackMs(now time.Time) int64 {
	if c.pauseTime.IsZero() {
		return now.Sub(c.baseClock).Milliseconds()
	}
	return c.pauseTime.Sub(c.baseClock).Milliseconds()
}

// Pause records pauseTime and switches to PAUSED.
func (c *Context) Pause(now time.Time) {
	c.clockMu.Lock()
	c.pauseTime = now
	c.clockMu.Unlock()
	c.SetState(StatePaused)
}

// Resume advances baseClock by the pause duration so PlaybackTimeMs
// continues seamlessly from where it was at Pause time.
func (c *Context) Resume(now time.Time) {
	c.clockMu.Lock()
	if !c.pauseTime.IsZero() {
		c.baseClock = c.baseClock.Add(now.Sub(c.pauseTime))
		c.pauseTime = time.Time{}
	}
	c.clockMu.Unlock()
	c.SetState(StatePlaying)
}

// RebaseClock sets base_clock = now - targetMs, the seek-time clock
// update.
func (c *Context) RebaseClock(now time.Time, targetMs int64) {
	c.clockMu.Lock()
	c.baseClock = now.Add(-time.Duration(targetMs) * time.Millisecond)
	c.clockMu.Unlock()
}
