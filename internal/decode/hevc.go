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

// Package decode wraps go-astiav's CodecContext/Frame/Packet types
// behind two small opaque decoder interfaces, one per elementary
// stream kind, so the pipeline stages never touch libav types
// directly.
package decode

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// Picture is one decoded HEVC frame, copied out of libav's frame
// buffers as three independent planes so the caller can hold it past
// the next ReceiveFrame call.
type Picture struct {
	PTSMs   int64
	Width   int
	Height  int
	Planes  [3][]byte
	Strides [3]int
}

// HEVCDecoder is the opaque video decoder surface: feed Annex-B data
// in, pull decoded pictures out.
type HEVCDecoder struct {
	ctx    *astiav.CodecContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	opened bool
}

// NewHEVCDecoder allocates and opens an HEVC decoding context; call
// PushData with the VPS/SPS/PPS blob before pushing the first sample.
func NewHEVCDecoder(threadCount int) (*HEVCDecoder, error) {
	dec := astiav.FindDecoder(astiav.CodecIDHevc)
	if dec == nil {
		return nil, errors.New("decode: hevc decoder not available")
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return nil, errors.New("decode: AllocCodecContext(hevc) failed")
	}
	if threadCount > 0 {
		ctx.SetThreadCount(threadCount)
	} else {
		ctx.SetThreadCount(1)
	}
	opts := astiav.NewDictionary()
	defer opts.Free()
	if err := ctx.Open(dec, opts); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("decode: open hevc context: %w", err)
	}
	return &HEVCDecoder{
		ctx:    ctx,
		pkt:    astiav.AllocPacket(),
		frame:  astiav.AllocFrame(),
		opened: true,
	}, nil
}

// PushData feeds one Annex-B buffer (a converted sample, or the
// concatenated parameter-set blob) to the decoder. It may produce zero
// or more pictures retrievable via Decode/GetNextPicture.
func (d *HEVCDecoder) PushData(annexB []byte, ptsMs int64) error {
	if len(annexB) == 0 {
		return nil
	}
	if err := d.pkt.FromData(annexB); err != nil {
		return fmt.Errorf("decode: packet.FromData: %w", err)
	}
	defer d.pkt.Unref()
	d.pkt.SetPts(ptsMs)
	d.pkt.SetDts(ptsMs)
	if err := d.ctx.SendPacket(d.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return fmt.Errorf("decode: SendPacket: %w", err)
	}
	return nil
}

// FlushData signals end-of-stream (a nil SendPacket) so the decoder
// drains any frames buffered for reordering.
func (d *HEVCDecoder) FlushData() error {
	if err := d.ctx.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEagain) && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("decode: flush SendPacket: %w", err)
	}
	return nil
}

// Decode pulls the next decoded picture, if any is ready. ok is false
// on EAGAIN/EOF (caller should push more data or stop).
func (d *HEVCDecoder) Decode() (pic Picture, ok bool, err error) {
	if rErr := d.ctx.ReceiveFrame(d.frame); rErr != nil {
		if errors.Is(rErr, astiav.ErrEagain) || errors.Is(rErr, astiav.ErrEof) {
			return Picture{}, false, nil
		}
		return Picture{}, false, fmt.Errorf("decode: ReceiveFrame: %w", rErr)
	}
	defer d.frame.Unref()
	return d.copyPicture(), true, nil
}

// GetNextPicture is an alias kept distinct from Decode to mirror the
// external interface's separate push/pull naming; it is equivalent to
// Decode and exists so pipeline code can read "pull a picture" without
// implying a fresh SendPacket happened.
func (d *HEVCDecoder) GetNextPicture() (Picture, bool, error) { return d.Decode() }

// copyPicture carries the decoder's own output frame PTS, not the PTS
// of whatever sample was most recently pushed: with B-frames, decode
// order and presentation order diverge, so the two can name different
// samples.
func (d *HEVCDecoder) copyPicture() Picture {
	pic := Picture{PTSMs: d.frame.Pts(), Width: d.frame.Width(), Height: d.frame.Height()}
	data := d.frame.Data()
	linesize := d.frame.Linesize()
	for i := 0; i < 3; i++ {
		h := pic.Height
		if i > 0 {
			h = (pic.Height + 1) / 2
		}
		ls := linesize[i]
		src := data[i]
		n := ls * h
		if n <= 0 || n > len(src) {
			continue
		}
		buf := make([]byte, n)
		copy(buf, src[:n])
		pic.Planes[i] = buf
		pic.Strides[i] = ls
	}
	return pic
}

// Reset flushes any buffered state without reallocating the codec
// context, used when seeking: the decoder stays open across a seek,
// but its reference-frame history must not bleed across the jump.
func (d *HEVCDecoder) Reset() {
	d.ctx.FlushBuffers()
}

// Free releases every libav resource this decoder owns.
func (d *HEVCDecoder) Free() {
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.ctx != nil {
		d.ctx.Free()
		d.ctx = nil
	}
	d.opened = false
}
