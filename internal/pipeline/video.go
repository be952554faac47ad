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

// Package pipeline runs the per-track reader+decoder/pacer/presenter
// worker chains described for video and audio, each synchronized
// against the shared playback clock in internal/playback.
package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/e1z0/cryptvaultplayer/internal/decode"
	"github.com/e1z0/cryptvaultplayer/internal/mp4"
	"github.com/e1z0/cryptvaultplayer/internal/playback"
)

// VideoSink receives pictures ready to present; Surface implements it.
type VideoSink interface {
	UpdateYUVTexture(width, height int, y, u, v []byte, yStride, uStride, vStride int)
	RenderPresent()
}

// VideoPipeline owns the HEVC decoder and the three worker goroutines
// for the video track.
type VideoPipeline struct {
	ctx  *playback.Context
	dec  *decode.HEVCDecoder
	sink VideoSink
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewVideoPipeline builds the pipeline and feeds the container's
// VPS/SPS/PPS blob to the decoder once, before any sample is pushed.
func NewVideoPipeline(ctx *playback.Context, sink VideoSink, threadCount int) (*VideoPipeline, error) {
	dec, err := decode.NewHEVCDecoder(threadCount)
	if err != nil {
		return nil, err
	}
	blob := mp4.AnnexBParameterSetBlob(ctx.VideoTrack.NALUArrays)
	if err := dec.PushData(blob, 0); err != nil {
		log.Printf("pipeline: video param set push failed: %v", err)
	}
	return &VideoPipeline{ctx: ctx, dec: dec, sink: sink, stop: make(chan struct{})}, nil
}

// Run starts the three worker goroutines; it returns immediately.
func (p *VideoPipeline) Run() {
	p.wg.Add(3)
	go p.readDecodeLoop()
	go p.paceLoop()
	go p.presentLoop()
}

// Stop signals every worker to exit, joins all three before releasing
// the decoder, so the codec context is never freed while
// readDecodeLoop might still be mid-SendPacket/ReceiveFrame.
func (p *VideoPipeline) Stop() {
	close(p.stop)
	p.wg.Wait()
	p.dec.Free()
}

// readDecodeLoop walks the track's sample table in order, reading each
// sample's bytes under the stream's lock, converting to Annex-B, and
// feeding the decoder; decoded pictures land on RawVideoQ.
func (p *VideoPipeline) readDecodeLoop() {
	defer p.wg.Done()
	track := p.ctx.VideoTrack
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if p.ctx.VideoResetFence.Load() {
			p.dec.Reset()
			p.ctx.VideoResetFence.Store(false)
		}

		idx := p.ctx.VideoCursor.Load()
		if idx < 0 || idx >= int64(len(track.Samples)) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		sm := track.Samples[idx]

		p.ctx.Stream.Lock()
		p.ctx.Stream.SeekAbs(sm.FileOffset)
		raw, err := p.ctx.Stream.ReadN(int(sm.Size))
		p.ctx.Stream.Unlock()
		if err != nil {
			log.Printf("pipeline: video sample read failed: %v", err)
			return
		}

		ptsMs := ptsMillis(sm.PresentationTime, track.Timescale)
		annexB := mp4.LengthPrefixedToAnnexB(raw)
		if err := p.dec.PushData(annexB, ptsMs); err != nil {
			log.Printf("pipeline: video decode push failed: %v", err)
		}
		p.ctx.VideoCursor.Add(1)

		for {
			pic, ok, err := p.dec.Decode()
			if err != nil {
				log.Printf("pipeline: video decode failed: %v", err)
				break
			}
			if !ok {
				break
			}
			frame := playback.VideoFrame{
				PTSMs:   pic.PTSMs,
				Width:   pic.Width,
				Height:  pic.Height,
				Planes:  pic.Planes,
				Strides: pic.Strides,
			}
			p.ctx.RawVideoQ.Push(frame)
		}
	}
}

// paceLoop holds each decoded frame until the shared clock reaches its
// presentation time, then moves it to the unbounded ready queue. A
// frame already held here when a seek lands is stale: waitUntil
// reports that itself by returning false, and the frame is dropped
// instead of forwarded.
func (p *VideoPipeline) paceLoop() {
	defer p.wg.Done()
	for {
		frame, ok := p.ctx.RawVideoQ.Pop()
		if !ok {
			return
		}
		if !p.waitUntil(frame.PTSMs) {
			continue
		}
		p.ctx.ReadyVideoQ.Push(frame)
	}
}

// waitUntil blocks until the clock reaches ptsMs, returning true when
// the frame is still good to present. It returns false if the pipeline
// is stopping or a seek starts while the frame is held, since the held
// frame's PTS no longer relates to the rebased clock.
func (p *VideoPipeline) waitUntil(ptsMs int64) bool {
	for {
		select {
		case <-p.stop:
			return false
		default:
		}
		if p.ctx.State() == playback.StateSeeking || p.ctx.VideoResetFence.Load() {
			return false
		}
		if p.ctx.State() != playback.StatePlaying {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		now := time.Now()
		cur := p.ctx.PlaybackTimeMs(now)
		if cur >= ptsMs {
			return true
		}
		wait := time.Duration(ptsMs-cur) * time.Millisecond
		if wait > 20*time.Millisecond {
			wait = 20 * time.Millisecond
		}
		time.Sleep(wait)
	}
}

// presentLoop hands each ready frame to the video sink.
func (p *VideoPipeline) presentLoop() {
	defer p.wg.Done()
	for {
		frame, ok := p.ctx.ReadyVideoQ.Pop()
		if !ok {
			return
		}
		p.sink.UpdateYUVTexture(frame.Width, frame.Height, frame.Planes[0], frame.Planes[1], frame.Planes[2],
			frame.Strides[0], frame.Strides[1], frame.Strides[2])
		p.sink.RenderPresent()
	}
}
