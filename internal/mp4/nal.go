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

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// LengthPrefixedToAnnexB converts one MP4 sample's NAL units (each
// preceded by a 4-byte big-endian length) into Annex-B form (each NAL
// preceded by the start code 00 00 00 01). Truncated trailing data is
// dropped rather than treated as an error, matching the player's
// tolerant mid-stream handling of malformed samples.
func LengthPrefixedToAnnexB(sample []byte) []byte {
	out := make([]byte, 0, len(sample)+16)
	pos := 0
	for pos+4 <= len(sample) {
		n := int(be32(sample[pos : pos+4]))
		pos += 4
		if n < 0 || pos+n > len(sample) {
			break
		}
		out = append(out, annexBStartCode...)
		out = append(out, sample[pos:pos+n]...)
		pos += n
	}
	return out
}

// AnnexBParameterSetBlob concatenates every NAL unit across every
// hvcC array (VPS/SPS/PPS, in document order) into one Annex-B blob,
// used once to initialize the HEVC decoder before the first sample is
// pushed.
func AnnexBParameterSetBlob(arrays []NALUArray) []byte {
	var out []byte
	for _, arr := range arrays {
		for _, nal := range arr.NALUs {
			out = append(out, annexBStartCode...)
			out = append(out, nal...)
		}
	}
	return out
}
