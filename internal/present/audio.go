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

package present

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/hajimehoshi/oto/v2"
)

// AudioOutput streams interleaved S16 PCM to the default device through
// a single Oto v2 player fed by an io.Pipe, the same wiring pattern as
// a single always-open audio sink.
type AudioOutput struct {
	ctx    *oto.Context
	player oto.Player
	pw     *io.PipeWriter

	mu     sync.Mutex
	paused bool
}

// OpenAudioOutput creates the Oto context and player for the given
// format. The context is process-global in Oto v2, so this must be
// called exactly once per process.
func OpenAudioOutput(sampleRate, channels int) (*AudioOutput, error) {
	ctx, ready, err := oto.NewContext(sampleRate, channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("present: oto.NewContext: %w", err)
	}
	go func() {
		<-ready
		log.Printf("present: audio output ready (%d Hz, %d ch)", sampleRate, channels)
	}()

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	if player == nil {
		_ = pw.Close()
		return nil, fmt.Errorf("present: NewPlayer returned nil")
	}

	return &AudioOutput{ctx: ctx, player: player, pw: pw}, nil
}

// ResumeAudioStream starts (or resumes) playback.
func (a *AudioOutput) ResumeAudioStream() {
	a.mu.Lock()
	a.paused = false
	a.mu.Unlock()
	a.player.Play()
}

// PauseAudioStream stops consuming the pipe; PutAudioStreamData still
// accepts data while paused but the call may block until resumed, since
// oto's player goroutine stops draining the pipe.
func (a *AudioOutput) PauseAudioStream() {
	a.mu.Lock()
	a.paused = true
	a.mu.Unlock()
	a.player.Pause()
}

// PutAudioStreamData writes one block of volume-scaled interleaved S16
// samples to the output.
func (a *AudioOutput) PutAudioStreamData(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	_, err := a.pw.Write(raw)
	return err
}

// Close tears down the player and pipe.
func (a *AudioOutput) Close() error {
	a.player.Close()
	return a.pw.Close()
}
