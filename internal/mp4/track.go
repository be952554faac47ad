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

import (
	"sort"

	"github.com/e1z0/cryptvaultplayer/internal/memstream"
)

// Kind identifies the handler type of an assembled track.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

// Sample is one decode-order entry in a track's flattened sample table.
type Sample struct {
	FileOffset        uint64
	Size              uint32
	DecodeTime        uint32
	CompositionOffset uint32
	PresentationTime  uint64
	Duration          uint32
	IsKeyframe        bool
}

// Track is the flattened, ready-to-play representation of a trak atom:
// one handler kind, its timescale/duration, codec-specific parameters,
// and the linearized sample table.
type Track struct {
	Kind      Kind
	Timescale uint32
	Duration  uint32

	// Video
	Width, Height uint32
	NALUArrays    []NALUArray

	// Audio
	ChannelCount uint32
	SampleRate   uint32
	SampleSize   uint32
	ASCBytes     []byte

	Samples []Sample
}

// trackBoxes collects the pointers Phase B needs before it can decide
// whether a trak is playable.
type trackBoxes struct {
	handlerType uint32
	mdhd        *MdhdBox
	stsdAtom    *Atom
	stts        *SttsBox
	ctts        *CttsBox
	stsc        *StscBox
	stsz        *StszBox
	stco        *StcoBox
	stss        *StssBox
}

func collectTrackBoxes(node *Atom, tb *trackBoxes) {
	switch node.Type {
	case "hdlr":
		if node.Hdlr != nil {
			tb.handlerType = node.Hdlr.Type
		}
	case "mdhd":
		tb.mdhd = node.Mdhd
	case "stts":
		tb.stts = node.Stts
	case "ctts":
		tb.ctts = node.Ctts
	case "stsc":
		tb.stsc = node.Stsc
	case "stsz":
		tb.stsz = node.Stsz
	case "stco":
		tb.stco = node.Stco
	case "stss":
		tb.stss = node.Stss
	case "stsd":
		tb.stsdAtom = node
	}
	for _, c := range node.Children {
		collectTrackBoxes(c, tb)
	}
}

// BuildTracks walks the atom tree assembled by ParseTree and returns one
// Track per playable trak: a trak is ignored if any required box
// (mdhd, stsd, stts, stsc, stsz, stco) is missing or if the handler kind
// is neither video nor audio.
func BuildTracks(s *memstream.Stream, atoms []*Atom) []*Track {
	var tracks []*Track

	var visitTrak func(node *Atom)
	visitTrak = func(node *Atom) {
		if node.Type == "trak" {
			if t := buildTrack(s, node); t != nil {
				tracks = append(tracks, t)
			}
		}
		for _, c := range node.Children {
			visitTrak(c)
		}
	}
	for _, a := range atoms {
		visitTrak(a)
	}
	return tracks
}

func buildTrack(s *memstream.Stream, trak *Atom) *Track {
	var tb trackBoxes
	collectTrackBoxes(trak, &tb)

	if tb.handlerType != HandlerVideo && tb.handlerType != HandlerAudio {
		return nil
	}
	if tb.mdhd == nil || tb.stsdAtom == nil || tb.stts == nil || tb.stsc == nil || tb.stsz == nil || tb.stco == nil {
		return nil
	}

	stsd := ParseStsd(s, tb.stsdAtom.Offset, tb.handlerType)
	if stsd == nil {
		return nil
	}

	t := &Track{
		Timescale: tb.mdhd.Timescale,
		Duration:  tb.mdhd.Duration,
	}
	if tb.handlerType == HandlerVideo {
		t.Kind = KindVideo
		t.Width = stsd.Width
		t.Height = stsd.Height
		t.NALUArrays = stsd.NALUArrays
	} else {
		t.Kind = KindAudio
		t.ChannelCount = uint32(stsd.ChannelCount)
		t.SampleRate = uint32(stsd.SampleRate)
		t.SampleSize = uint32(stsd.SampleSize)
		t.ASCBytes = stsd.ASCBytes
	}

	t.Samples = buildSamples(tb)
	return t
}

// buildSamples linearizes stsc+stco+stsz+stts+ctts?+stss? into a flat,
// decode-ordered sample table.
//
// Chunk ids in stsc are 1-based; sync-sample entries in stss are
// 1-based. A stsc entry referencing a chunk id beyond stco stops
// emission for that entry's range; stsz running out mid-chunk stops the
// current chunk and continues to the next stsc entry.
func buildSamples(tb trackBoxes) []Sample {
	stsz, stsc, stco, stts, ctts, stss := tb.stsz, tb.stsc, tb.stco, tb.stts, tb.ctts, tb.stss

	var samples []Sample

	sampleIndex := 0
	decodeTime := uint32(0)
	sttsIndex, sttsPos := 0, uint32(0)
	cttsIndex, cttsPos := 0, uint32(0)
	sampleID := uint32(1)

	for i, entry := range stsc.Entries {
		var nextFirstChunk uint32
		if i+1 < len(stsc.Entries) {
			nextFirstChunk = stsc.Entries[i+1].FirstChunk
		} else {
			nextFirstChunk = uint32(len(stco.Entries)) + 1
		}

		for chunkID := entry.FirstChunk; chunkID < nextFirstChunk; chunkID++ {
			if chunkID == 0 || int(chunkID-1) >= len(stco.Entries) {
				break
			}
			offset := uint64(stco.Entries[chunkID-1])

			for sc := uint32(0); sc < entry.SamplesPerChunk && sampleIndex < len(stsz.Entries); sc++ {
				size := stsz.Entries[sampleIndex]

				compositionOffset := uint32(0)
				if ctts != nil && cttsIndex < len(ctts.Entries) {
					e := ctts.Entries[cttsIndex]
					compositionOffset = e.SampleOffset
					cttsPos++
					if cttsPos >= e.SampleCount {
						cttsPos = 0
						cttsIndex++
					}
				}

				duration := uint32(0)
				if sttsIndex < len(stts.Entries) {
					e := stts.Entries[sttsIndex]
					duration = e.SampleDelta
					sttsPos++
					if sttsPos >= e.SampleCount {
						sttsPos = 0
						sttsIndex++
					}
				}

				isKey := stss == nil || sortedContains(stss.Entries, sampleID)

				samples = append(samples, Sample{
					FileOffset:        offset,
					Size:              size,
					DecodeTime:        decodeTime,
					CompositionOffset: compositionOffset,
					PresentationTime:  uint64(decodeTime) + uint64(compositionOffset),
					Duration:          duration,
					IsKeyframe:        isKey,
				})

				offset += uint64(size)
				decodeTime += duration
				sampleIndex++
				sampleID++
			}
		}
	}

	return samples
}

func sortedContains(sorted []uint32, v uint32) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= v })
	return i < len(sorted) && sorted[i] == v
}
