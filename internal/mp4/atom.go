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

// Package mp4 implements the two-phase ISO-BMFF parser: a recursive atom
// tree walker (Phase A) and a track/sample-table assembler (Phase B).
package mp4

import "github.com/e1z0/cryptvaultplayer/internal/memstream"

// containerTypes are descended into during the tree walk; everything
// else is either parsed by a typed leaf handler or retained opaque.
var containerTypes = map[string]bool{
	"moov": true,
	"trak": true,
	"mdia": true,
	"minf": true,
	"stbl": true,
	"dinf": true,
	"edts": true,
	"udta": true,
}

// Atom is a node in the ISO-BMFF box tree: a file offset, a total size
// including the 8-byte header, a 4-byte type code, and an ordered child
// list (populated only for container types).
type Atom struct {
	Offset   int64
	Size     int64
	Type     string
	Children []*Atom

	// Typed payload, populated by the leaf parser matching Type, nil
	// otherwise.
	Mdhd *MdhdBox
	Hdlr *HdlrBox
	Stsd *StsdBox
	Stts *SttsBox
	Ctts *CttsBox
	Stsc *StscBox
	Stsz *StszBox
	Stco *StcoBox
	Stss *StssBox
}

func isValidAtomType(b []byte) bool {
	for _, c := range b {
		if c < 32 || c > 126 {
			return false
		}
	}
	return true
}

// parseAtoms walks [start, end) in s, reading one 8-byte header
// (size:u32 big-endian, type:4 bytes) per iteration, and returns the
// sibling atoms found at this level. Headers with an invalid type, a
// size < 8, or a span extending past end stop the walk at that point
// without failing the caller.
func parseAtoms(s *memstream.Stream, start, end int64) []*Atom {
	var atoms []*Atom
	offset := start

	for offset+8 <= end {
		if !s.SeekAbs(offset) {
			break
		}
		hdr, err := s.ReadN(8)
		if err != nil || s.GCount() < 8 {
			break
		}
		sizeField := be32(hdr[0:4])
		typeBytes := hdr[4:8]
		if !isValidAtomType(typeBytes) {
			break
		}

		childSize := int64(sizeField)
		childType := string(typeBytes)

		bodyStart := offset + 8
		if childSize < 8 || bodyStart+childSize-8 > end {
			break
		}

		atom := &Atom{Offset: offset, Size: childSize, Type: childType}
		parseLeaf(s, atom)
		if containerTypes[childType] {
			atom.Children = parseAtoms(s, bodyStart, offset+childSize)
		}
		atoms = append(atoms, atom)

		offset += childSize
	}

	return atoms
}

// ParseTree parses the whole stream from offset 0 and returns the
// top-level atoms.
func ParseTree(s *memstream.Stream) []*Atom {
	return parseAtoms(s, 0, s.Size())
}

// parseLeaf dispatches to the typed parser matching atom.Type, if any.
// stsd is special-cased: its contents depend on the enclosing track's
// handler kind, which is not known until Phase B, so it is parsed there
// instead (ParseStsd), and here it is left as an opaque node.
func parseLeaf(s *memstream.Stream, atom *Atom) {
	switch atom.Type {
	case "mdhd":
		atom.Mdhd = parseMdhd(s, atom.Offset)
	case "hdlr":
		atom.Hdlr = parseHdlr(s, atom.Offset)
	case "stts":
		atom.Stts = parseStts(s, atom.Offset)
	case "ctts":
		atom.Ctts = parseCtts(s, atom.Offset)
	case "stsc":
		atom.Stsc = parseStsc(s, atom.Offset)
	case "stsz":
		atom.Stsz = parseStsz(s, atom.Offset)
	case "stco":
		atom.Stco = parseStco(s, atom.Offset)
	case "stss":
		atom.Stss = parseStss(s, atom.Offset)
	}
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
