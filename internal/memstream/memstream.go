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

// Package memstream provides a random-access view over a decrypted
// in-memory byte buffer, the pathway everything downstream of the
// encrypted file reads through.
package memstream

import (
	"os"
	"sync"

	"github.com/e1z0/cryptvaultplayer/internal/cryptor"
)

// SeekWhence mirrors the three seek origins of a classic stream API.
type SeekWhence int

const (
	SeekBegin SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// Stream is a single contiguous decrypted buffer with a mutable cursor.
// It is guarded by a single mutex: callers that need seek+read to be
// atomic must hold Lock/Unlock around both calls.
type Stream struct {
	mu sync.Mutex

	buf   []byte
	pos   int64
	last  int64
	valid bool
}

// Open reads the whole file, derives the key from password via SHA-256,
// zeroes the password bytes, and decrypts the ciphertext; the derived key
// and the ciphertext buffer are zeroed once decryption is done. If the
// file cannot be read or decryption yields empty output, the returned
// Stream is marked invalid and holds no bytes, so every read of one or
// more bytes and every seek to a non-zero offset fails. The other methods
// do not check Valid.
func Open(path string, password []byte) (*Stream, error) {
	s := &Stream{}

	encrypted, err := os.ReadFile(path)
	if err != nil {
		s.valid = false
		return s, err
	}

	key := cryptor.SHA256(password)
	cryptor.SecureClear(password)

	plain, err := cryptor.Decrypt(encrypted, key[:])
	cryptor.SecureClear(key[:])
	cryptor.SecureClear(encrypted)
	if err != nil || len(plain) == 0 {
		s.valid = false
		if err == nil {
			err = errDecryptEmpty
		}
		return s, err
	}

	s.buf = plain
	s.pos = 0
	s.last = 0
	s.valid = true
	return s, nil
}

// Wrap builds a valid Stream directly over an already-plaintext buffer,
// bypassing the encrypted-file pathway. Used by tests and by any caller
// that already holds decrypted container bytes.
func Wrap(buf []byte) *Stream {
	return &Stream{buf: buf, valid: true}
}

var errDecryptEmpty = &streamError{"memstream: decrypted payload is empty"}

type streamError struct{ s string }

func (e *streamError) Error() string { return e.s }

// Lock/Unlock expose the stream's single mutex so callers (the reader
// stages) can make seek+read atomic across both video and audio tracks.
func (s *Stream) Lock()   { s.mu.Lock() }
func (s *Stream) Unlock() { s.mu.Unlock() }

func (s *Stream) Valid() bool { return s.valid }

func (s *Stream) Size() int64 {
	return int64(len(s.buf))
}

// SeekAbs moves the cursor to an absolute position. Fails (returns false)
// without mutating pos if pos is out of range.
func (s *Stream) SeekAbs(pos int64) bool {
	if pos < 0 || pos > int64(len(s.buf)) {
		return false
	}
	s.pos = pos
	return true
}

// SeekRel moves the cursor by offset relative to whence.
func (s *Stream) SeekRel(offset int64, whence SeekWhence) bool {
	var newPos int64
	switch whence {
	case SeekBegin:
		newPos = offset
	case SeekCurrent:
		newPos = s.pos + offset
	case SeekEnd:
		newPos = int64(len(s.buf)) + offset
	default:
		return false
	}
	if newPos < 0 || newPos > int64(len(s.buf)) {
		return false
	}
	s.pos = newPos
	return true
}

func (s *Stream) Tell() int64 { return s.pos }

// Read copies exactly n bytes into dst[:n]. If pos+n exceeds the buffer,
// it fails, leaves pos unchanged, and sets the last-read count to 0.
func (s *Stream) Read(dst []byte, n int) bool {
	if s.pos+int64(n) > int64(len(s.buf)) {
		s.last = 0
		return false
	}
	copy(dst, s.buf[s.pos:s.pos+int64(n)])
	s.pos += int64(n)
	s.last = int64(n)
	return true
}

// ReadN is a convenience wrapper that allocates and returns the read
// bytes, or an error if the read would run past the end of the buffer.
func (s *Stream) ReadN(n int) ([]byte, error) {
	dst := make([]byte, n)
	if !s.Read(dst, n) {
		return nil, errShortRead
	}
	return dst, nil
}

var errShortRead = &streamError{"memstream: read past end of buffer"}

func (s *Stream) GCount() int64 { return s.last }

// Ignore advances the cursor by n, clamped to the buffer size.
func (s *Stream) Ignore(n int64) {
	newPos := s.pos + n
	if newPos > int64(len(s.buf)) {
		newPos = int64(len(s.buf))
	}
	s.pos = newPos
}

// Close zeroes the live buffer. Safe to call once; the stream must not
// be used afterward.
func (s *Stream) Close() {
	cryptor.SecureClear(s.buf)
	s.buf = nil
	s.valid = false
}
