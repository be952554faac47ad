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

package mp4

import "github.com/e1z0/cryptvaultplayer/internal/memstream"

// HandlerVideo and HandlerAudio are the big-endian u32 values of the
// ASCII four-character codes 'vide' and 'soun' as found in hdlr boxes.
const (
	HandlerVideo uint32 = 0x76696465 // 'vide'
	HandlerAudio uint32 = 0x736f756e // 'soun'
)

type MdhdBox struct {
	Timescale uint32
	Duration  uint32
}

func parseMdhd(s *memstream.Stream, offset int64) *MdhdBox {
	s.SeekAbs(offset + 12)
	s.Ignore(8)
	ts, err1 := s.ReadN(4)
	du, err2 := s.ReadN(4)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &MdhdBox{Timescale: be32(ts), Duration: be32(du)}
}

type HdlrBox struct {
	Type uint32
}

func parseHdlr(s *memstream.Stream, offset int64) *HdlrBox {
	s.SeekAbs(offset + 12)
	s.Ignore(4)
	b, err := s.ReadN(4)
	if err != nil {
		return nil
	}
	return &HdlrBox{Type: be32(b)}
}

type StszBox struct {
	// Entries always has length sample_count. If the on-disk box used the
	// uniform-size form (sample_size != 0), the entries here are
	// synthesized: every value equals that one size. The uniform form is
	// read but not acted on by every downstream consumer of the original
	// this was ported from; this parser always materializes it so the
	// sample-table builder never needs to special-case the two forms.
	Entries []uint32
}

func parseStsz(s *memstream.Stream, offset int64) *StszBox {
	s.SeekAbs(offset + 12)
	sb, err1 := s.ReadN(4)
	cb, err2 := s.ReadN(4)
	if err1 != nil || err2 != nil {
		return nil
	}
	sampleSize := be32(sb)
	sampleCount := be32(cb)

	box := &StszBox{}
	if sampleSize == 0 {
		box.Entries = make([]uint32, 0, sampleCount)
		for i := uint32(0); i < sampleCount; i++ {
			eb, err := s.ReadN(4)
			if err != nil {
				break
			}
			box.Entries = append(box.Entries, be32(eb))
		}
	} else {
		box.Entries = make([]uint32, sampleCount)
		for i := range box.Entries {
			box.Entries[i] = sampleSize
		}
	}
	return box
}

type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

type StscBox struct {
	Entries []StscEntry
}

func parseStsc(s *memstream.Stream, offset int64) *StscBox {
	s.SeekAbs(offset + 12)
	cb, err := s.ReadN(4)
	if err != nil {
		return nil
	}
	count := be32(cb)

	box := &StscBox{Entries: make([]StscEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		raw, err := s.ReadN(12)
		if err != nil {
			break
		}
		box.Entries = append(box.Entries, StscEntry{
			FirstChunk:             be32(raw[0:4]),
			SamplesPerChunk:        be32(raw[4:8]),
			SampleDescriptionIndex: be32(raw[8:12]),
		})
	}
	return box
}

type StcoBox struct {
	Entries []uint32
}

func parseStco(s *memstream.Stream, offset int64) *StcoBox {
	s.SeekAbs(offset + 12)
	cb, err := s.ReadN(4)
	if err != nil {
		return nil
	}
	count := be32(cb)

	box := &StcoBox{Entries: make([]uint32, 0, count)}
	for i := uint32(0); i < count; i++ {
		eb, err := s.ReadN(4)
		if err != nil {
			break
		}
		box.Entries = append(box.Entries, be32(eb))
	}
	return box
}

type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

type SttsBox struct {
	Entries []SttsEntry
}

func parseStts(s *memstream.Stream, offset int64) *SttsBox {
	s.SeekAbs(offset + 12)
	cb, err := s.ReadN(4)
	if err != nil {
		return nil
	}
	count := be32(cb)

	box := &SttsBox{Entries: make([]SttsEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		raw, err := s.ReadN(8)
		if err != nil {
			break
		}
		box.Entries = append(box.Entries, SttsEntry{
			SampleCount: be32(raw[0:4]),
			SampleDelta: be32(raw[4:8]),
		})
	}
	return box
}

type CttsEntry struct {
	SampleCount  uint32
	SampleOffset uint32
}

type CttsBox struct {
	Entries []CttsEntry
}

func parseCtts(s *memstream.Stream, offset int64) *CttsBox {
	s.SeekAbs(offset + 12)
	cb, err := s.ReadN(4)
	if err != nil {
		return nil
	}
	count := be32(cb)

	box := &CttsBox{Entries: make([]CttsEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		raw, err := s.ReadN(8)
		if err != nil {
			break
		}
		box.Entries = append(box.Entries, CttsEntry{
			SampleCount:  be32(raw[0:4]),
			SampleOffset: be32(raw[4:8]),
		})
	}
	return box
}

// StssBox holds 1-based sync-sample (keyframe) indices in ascending
// on-disk order, which for a conforming file is also sorted -- the
// sample-table builder relies on that for its binary search.
type StssBox struct {
	Entries []uint32
}

func parseStss(s *memstream.Stream, offset int64) *StssBox {
	s.SeekAbs(offset + 12)
	cb, err := s.ReadN(4)
	if err != nil {
		return nil
	}
	count := be32(cb)

	box := &StssBox{Entries: make([]uint32, 0, count)}
	for i := uint32(0); i < count; i++ {
		eb, err := s.ReadN(4)
		if err != nil {
			break
		}
		box.Entries = append(box.Entries, be32(eb))
	}
	return box
}

// NALUArray is one hvcC parameter-set array (e.g. all VPS NALs, or all
// SPS NALs), in document order.
type NALUArray struct {
	ArrayType byte
	NALUs     [][]byte
}

// StsdBox carries the codec-specific fields extracted from a sample
// description box, parsed in the context of the enclosing track's
// handler kind (see ParseStsd).
type StsdBox struct {
	Width, Height uint32
	NALUArrays    []NALUArray

	ChannelCount uint16
	SampleSize   uint16
	SampleRate   float32
	ASCBytes     []byte
}

// ParseStsd parses a stsd box's body in the context of handlerType
// (HandlerVideo or HandlerAudio). It is invoked during Phase B, once the
// enclosing track's handler kind is known, rather than during the
// generic tree walk.
func ParseStsd(s *memstream.Stream, offset int64, handlerType uint32) *StsdBox {
	s.SeekAbs(offset + 12)
	cb, err := s.ReadN(4)
	if err != nil {
		return nil
	}
	entryCount := be32(cb)

	box := &StsdBox{}

	switch handlerType {
	case HandlerVideo:
		parseStsdVideo(s, box, entryCount)
	case HandlerAudio:
		parseStsdAudio(s, box, entryCount)
	}
	return box
}

func parseStsdVideo(s *memstream.Stream, box *StsdBox, entryCount uint32) {
	for i := uint32(0); i < entryCount; i++ {
		s.Ignore(4) // sample entry size
		nameBytes, err := s.ReadN(4)
		if err != nil {
			return
		}
		if string(nameBytes) != "hev1" && string(nameBytes) != "hvc1" {
			continue
		}

		s.Ignore(24)
		wb, err := s.ReadN(2)
		if err != nil {
			return
		}
		hb, err := s.ReadN(2)
		if err != nil {
			return
		}
		box.Width = uint32(be16(wb))
		box.Height = uint32(be16(hb))

		s.Ignore(54)
		nameBytes, err = s.ReadN(4)
		if err != nil {
			return
		}
		if string(nameBytes) != "hvcC" {
			continue
		}

		s.Ignore(21) // fixed HEVCDecoderConfigurationRecord prefix
		fb, err := s.ReadN(1)
		if err != nil {
			return
		}
		_ = fb // constantFrameRate/numTemporalLayers/lengthSizeMinusOne byte, not needed downstream

		nb, err := s.ReadN(1)
		if err != nil {
			return
		}
		numArrays := int(nb[0])

		for a := 0; a < numArrays; a++ {
			atb, err := s.ReadN(1)
			if err != nil {
				return
			}
			arrayType := atb[0] & 0x3F

			cntb, err := s.ReadN(2)
			if err != nil {
				return
			}
			numNalus := int(be16(cntb))

			arr := NALUArray{ArrayType: arrayType}
			for n := 0; n < numNalus; n++ {
				szb, err := s.ReadN(2)
				if err != nil {
					return
				}
				nalSize := int(be16(szb))
				nal, err := s.ReadN(nalSize)
				if err != nil {
					return
				}
				arr.NALUs = append(arr.NALUs, nal)
			}
			box.NALUArrays = append(box.NALUArrays, arr)
		}
	}
}

func parseStsdAudio(s *memstream.Stream, box *StsdBox, entryCount uint32) {
	for i := uint32(0); i < entryCount; i++ {
		s.Ignore(4) // sample entry size
		nameBytes, err := s.ReadN(4)
		if err != nil {
			return
		}
		if string(nameBytes) != "mp4a" {
			continue
		}

		s.Ignore(16)
		cc, err := s.ReadN(2)
		if err != nil {
			return
		}
		ss, err := s.ReadN(2)
		if err != nil {
			return
		}
		box.ChannelCount = be16(cc)
		box.SampleSize = be16(ss)

		s.Ignore(4)
		sr, err := s.ReadN(4)
		if err != nil {
			return
		}
		box.SampleRate = float32(be32(sr)) / 65536.0

		s.Ignore(4)
		nameBytes, err = s.ReadN(4)
		if err != nil {
			return
		}
		if string(nameBytes) != "esds" {
			continue
		}

		box.ASCBytes = parseEsds(s)
	}
}

// parseEsds walks the MPEG-4 descriptor chain inside an esds box,
// tolerating the long-form length encoding (each length byte with the
// 0x80 high bit set is a continuation byte, and the first byte without
// that bit set is the real length), and returns the DecoderSpecificInfo
// payload (the AudioSpecificConfig bytes).
func parseEsds(s *memstream.Stream) []byte {
	s.Ignore(4) // version + flags

	readByte := func() (byte, bool) {
		b, err := s.ReadN(1)
		if err != nil {
			return 0, false
		}
		return b[0], true
	}

	// skipLength consumes a descriptor's length bytes and returns the
	// final (non-continuation) one, which doubles as the length value
	// itself for the short descriptors this format uses.
	skipLength := func() (byte, bool) {
		var b byte
		for {
			v, ok := readByte()
			if !ok {
				return 0, false
			}
			b = v
			if b&0x80 == 0 {
				break
			}
		}
		return b, true
	}

	tag, ok := readByte() // ES_DescriptorTag
	if !ok || tag != 0x03 {
		return nil
	}
	if _, ok := skipLength(); !ok {
		return nil
	}
	s.Ignore(3) // ES_ID(2) + stream priority/flags(1)

	if _, ok := readByte(); !ok { // DecoderConfigDescriptor tag
		return nil
	}
	if _, ok := skipLength(); !ok {
		return nil
	}
	s.Ignore(13) // object type, stream type/bufferSizeDB, max/avg bitrate

	if _, ok := readByte(); !ok { // DecoderSpecificInfo tag
		return nil
	}
	ascSize, ok := skipLength()
	if !ok {
		return nil
	}

	asc, err := s.ReadN(int(ascSize))
	if err != nil {
		return nil
	}
	return asc
}
