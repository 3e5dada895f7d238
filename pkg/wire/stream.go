// Copyright 2024 The Solaris Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wire provides the byte-level codec of the container format: the
// little-endian primitive reads and writes, the length-prefixed strings, the
// record framing with the backpatched lengths and the running CRC32 state.
package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf8"

	"github.com/solarisdb/mcap/golibs/errors"
)

// ReadStream wraps an io.Reader and provides the little-endian primitive
// decoding used by the container format. The stream counts every byte it
// consumes and, when requested, maintains a running CRC32 (IEEE) over them,
// so a caller may cover an arbitrary long region without buffering it.
type ReadStream struct {
	r     io.Reader
	count uint64
	crc   uint32
	crcOn bool
}

// NewReadStream returns the stream over r. If calculateCRC is true, the
// running checksum is updated by every consumed byte.
func NewReadStream(r io.Reader, calculateCRC bool) *ReadStream {
	return &ReadStream{r: r, crcOn: calculateCRC}
}

// Count returns the number of bytes consumed so far
func (s *ReadStream) Count() uint64 {
	return s.count
}

// Checksum returns the running CRC32 state
func (s *ReadStream) Checksum() uint32 {
	if !s.crcOn {
		panic("requested checksum on a stream created without CRC calculation")
	}
	return s.crc
}

// Read consumes exactly n bytes and returns them. A short read is reported
// as an error wrapping io.ErrUnexpectedEOF.
func (s *ReadStream) Read(n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := s.fill(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto consumes exactly len(p) bytes into p
func (s *ReadStream) ReadInto(p []byte) error {
	return s.fill(p)
}

func (s *ReadStream) fill(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	s.count += uint64(n)
	if s.crcOn && n > 0 {
		s.crc = crc32.Update(s.crc, crc32.IEEETable, p[:n])
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("short read, want %d bytes, got %d: %w", len(p), n, io.ErrUnexpectedEOF)
	}
	return err
}

// Skip consumes and drops n bytes. The skipped bytes still feed the
// running checksum.
func (s *ReadStream) Skip(n uint64) error {
	var scratch [4096]byte
	for n > 0 {
		l := uint64(len(scratch))
		if n < l {
			l = n
		}
		if err := s.fill(scratch[:l]); err != nil {
			return err
		}
		n -= l
	}
	return nil
}

// ReadU8 reads one byte
func (s *ReadStream) ReadU8() (uint8, error) {
	var b [1]byte
	if err := s.fill(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16
func (s *ReadStream) ReadU16() (uint16, error) {
	var b [2]byte
	if err := s.fill(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadU32 reads a little-endian uint32
func (s *ReadStream) ReadU32() (uint32, error) {
	var b [4]byte
	if err := s.fill(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadU64 reads a little-endian uint64
func (s *ReadStream) ReadU64() (uint64, error) {
	var b [8]byte
	if err := s.fill(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ReadString reads a u32 byte-length prefixed UTF-8 string
func (s *ReadStream) ReadString() (string, error) {
	ln, err := s.ReadU32()
	if err != nil {
		return "", err
	}
	buf, err := s.Read(uint64(ln))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("the string of %d bytes is not valid UTF-8: %w", ln, errors.ErrInvalid)
	}
	return string(buf), nil
}
