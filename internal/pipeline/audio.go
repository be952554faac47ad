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

package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/e1z0/cryptvaultplayer/internal/decode"
	"github.com/e1z0/cryptvaultplayer/internal/playback"
)

// AudioSink receives PCM ready to play; present.AudioOutput implements
// it.
type AudioSink interface {
	PutAudioStreamData(samples []int16) error
}

// AudioPipeline owns the AAC decoder and the three worker goroutines
// for the audio track.
type AudioPipeline struct {
	ctx  *playback.Context
	dec  *decode.AACDecoder
	sink AudioSink
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewAudioPipeline opens and configures the AAC decoder from the
// track's stsd-derived AudioSpecificConfig.
func NewAudioPipeline(ctx *playback.Context, sink AudioSink) (*AudioPipeline, error) {
	dec, err := decode.Open()
	if err != nil {
		return nil, err
	}
	tr := ctx.AudioTrack
	if err := dec.ConfigRaw(tr.ASCBytes, int(tr.ChannelCount), int(tr.SampleRate)); err != nil {
		dec.Close()
		return nil, err
	}
	return &AudioPipeline{ctx: ctx, dec: dec, sink: sink, stop: make(chan struct{})}, nil
}

func (p *AudioPipeline) Run() {
	p.wg.Add(3)
	go p.readDecodeLoop()
	go p.paceLoop()
	go p.presentLoop()
}

// Stop signals every worker to exit, joins all three before closing
// the decoder, so the codec context is never freed while
// readDecodeLoop might still be mid-SendPacket/ReceiveFrame.
func (p *AudioPipeline) Stop() {
	close(p.stop)
	p.wg.Wait()
	p.dec.Close()
}

func (p *AudioPipeline) readDecodeLoop() {
	defer p.wg.Done()
	track := p.ctx.AudioTrack
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if p.ctx.AudioResetFence.Load() {
			p.ctx.AudioResetFence.Store(false)
		}

		idx := p.ctx.AudioCursor.Load()
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
			log.Printf("pipeline: audio sample read failed: %v", err)
			return
		}

		ptsMs := ptsMillis(sm.PresentationTime, track.Timescale)
		if err := p.dec.Fill(raw, ptsMs); err != nil {
			log.Printf("pipeline: audio decode push failed: %v", err)
		}
		p.ctx.AudioCursor.Add(1)

		for {
			pcm, ok, err := p.dec.DecodeFrame()
			if err != nil {
				log.Printf("pipeline: audio decode failed: %v", err)
				break
			}
			if !ok {
				break
			}
			info := p.dec.GetStreamInfo()
			frame := playback.AudioFrame{
				PTSMs:      ptsMs,
				SampleRate: info.SampleRate,
				Channels:   info.Channels,
				FrameSize:  info.FrameSize,
				PCM:        pcm.Samples,
			}
			p.ctx.RawAudioQ.Push(frame)
		}
	}
}

// paceLoop holds each decoded block until the shared clock reaches its
// presentation time, then moves it to the unbounded ready queue. A
// block already held here when a seek lands is stale and is dropped
// rather than forwarded.
func (p *AudioPipeline) paceLoop() {
	defer p.wg.Done()
	for {
		frame, ok := p.ctx.RawAudioQ.Pop()
		if !ok {
			return
		}
		if !p.waitUntil(frame.PTSMs) {
			continue
		}
		p.ctx.ReadyAudioQ.Push(frame)
	}
}

// waitUntil blocks until the clock reaches ptsMs, returning true when
// the block is still good to present. It returns false if the pipeline
// is stopping or a seek starts while the block is held.
func (p *AudioPipeline) waitUntil(ptsMs int64) bool {
	for {
		select {
		case <-p.stop:
			return false
		default:
		}
		if p.ctx.State() == playback.StateSeeking || p.ctx.AudioResetFence.Load() {
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

// presentLoop applies the current volume (saturating and rounded to
// the nearest integer, so clipped samples clamp rather than wrap or
// truncate toward zero) and writes the block to the sink.
func (p *AudioPipeline) presentLoop() {
	defer p.wg.Done()
	for {
		frame, ok := p.ctx.ReadyAudioQ.Pop()
		if !ok {
			return
		}
		vol := p.ctx.Volume()
		scaled := make([]int16, len(frame.PCM))
		for i, s := range frame.PCM {
			v := float32(s) * vol
			if v >= 0 {
				v += 0.5
			} else {
				v -= 0.5
			}
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			scaled[i] = int16(v)
		}
		if err := p.sink.PutAudioStreamData(scaled); err != nil {
			log.Printf("pipeline: audio output write failed: %v", err)
			return
		}
	}
}
