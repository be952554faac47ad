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

package decode

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// StreamInfo reports the decoder's negotiated output format, read
// after the first successful DecodeFrame.
type StreamInfo struct {
	SampleRate int
	Channels   int
	FrameSize  int
}

// PCM is one block of resampled, interleaved S16 audio.
type PCM struct {
	Samples []int16
	Frames  int
}

// AACDecoder is the opaque audio decoder surface: configure once from
// the stsd-derived AudioSpecificConfig, then fill/decode in a loop. Its
// output is always resampled to interleaved S16 so the presentation
// side (oto/v2) never has to branch on sample format.
type AACDecoder struct {
	ctx    *astiav.CodecContext
	swr    *astiav.SoftwareResampleContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	out    *astiav.Frame
	info   StreamInfo
	opened bool
}

// Open allocates the AAC decoding context but does not start it; call
// ConfigRaw with the container's AudioSpecificConfig bytes to open it.
func Open() (*AACDecoder, error) {
	dec := astiav.FindDecoder(astiav.CodecIDAac)
	if dec == nil {
		return nil, errors.New("decode: aac decoder not available")
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return nil, errors.New("decode: AllocCodecContext(aac) failed")
	}
	return &AACDecoder{
		ctx:   ctx,
		pkt:   astiav.AllocPacket(),
		frame: astiav.AllocFrame(),
		out:   astiav.AllocFrame(),
	}, nil
}

// ConfigRaw opens the decoder using the raw AudioSpecificConfig bytes
// recovered from the container's esds box as extradata, the same way a
// demuxer would hand them to libavcodec.
func (d *AACDecoder) ConfigRaw(asc []byte, channels, sampleRate int) error {
	if len(asc) > 0 {
		d.ctx.SetExtraData(asc)
	}
	if channels > 0 {
		d.ctx.SetChannelLayout(astiav.ChannelLayoutForChannels(channels))
	}
	if sampleRate > 0 {
		d.ctx.SetSampleRate(sampleRate)
	}
	opts := astiav.NewDictionary()
	defer opts.Free()
	if err := d.ctx.Open(astiav.FindDecoder(astiav.CodecIDAac), opts); err != nil {
		return fmt.Errorf("decode: open aac context: %w", err)
	}
	d.opened = true
	return nil
}

// Fill feeds one raw AAC frame (the MP4 sample payload, already
// stripped of its length prefix) to the decoder.
func (d *AACDecoder) Fill(raw []byte, ptsMs int64) error {
	if len(raw) == 0 {
		return nil
	}
	if err := d.pkt.FromData(raw); err != nil {
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

// DecodeFrame pulls one decoded, resampled PCM block. ok is false on
// EAGAIN/EOF.
func (d *AACDecoder) DecodeFrame() (PCM, bool, error) {
	if err := d.ctx.ReceiveFrame(d.frame); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return PCM{}, false, nil
		}
		return PCM{}, false, fmt.Errorf("decode: ReceiveFrame: %w", err)
	}
	defer d.frame.Unref()

	d.info = StreamInfo{
		SampleRate: d.frame.SampleRate(),
		Channels:   d.frame.ChannelLayout().Channels(),
		FrameSize:  d.frame.NbSamples(),
	}

	if d.swr == nil {
		d.swr = astiav.AllocSoftwareResampleContext()
	}
	d.out.SetSampleFormat(astiav.SampleFormatS16)
	d.out.SetChannelLayout(d.frame.ChannelLayout())
	d.out.SetSampleRate(d.frame.SampleRate())
	d.out.SetNbSamples(d.frame.NbSamples())
	if err := d.out.AllocBuffer(0); err != nil {
		return PCM{}, false, fmt.Errorf("decode: out.AllocBuffer: %w", err)
	}
	defer d.out.Unref()

	if err := d.swr.ConvertFrame(d.frame, d.out); err != nil {
		return PCM{}, false, fmt.Errorf("decode: swr ConvertFrame: %w", err)
	}

	n, err := d.out.SamplesBufferSize(1)
	if err != nil {
		return PCM{}, false, fmt.Errorf("decode: SamplesBufferSize: %w", err)
	}
	raw := make([]byte, n)
	if _, err := d.out.SamplesCopyToBuffer(raw, 1); err != nil {
		return PCM{}, false, fmt.Errorf("decode: SamplesCopyToBuffer: %w", err)
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[2*i]) | int16(raw[2*i+1])<<8
	}
	return PCM{Samples: samples, Frames: d.frame.NbSamples()}, true, nil
}

// GetStreamInfo returns the format negotiated by the most recent
// DecodeFrame call.
func (d *AACDecoder) GetStreamInfo() StreamInfo { return d.info }

// Close releases every libav resource this decoder owns.
func (d *AACDecoder) Close() {
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.out != nil {
		d.out.Free()
		d.out = nil
	}
	if d.swr != nil {
		d.swr.Free()
		d.swr = nil
	}
	if d.ctx != nil {
		d.ctx.Free()
		d.ctx = nil
	}
	d.opened = false
}
