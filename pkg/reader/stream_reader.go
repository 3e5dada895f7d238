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
package reader

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/solarisdb/mcap/golibs/container/iterable"
	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/pkg/chunkenc"
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/wire"
)

type (
	// StreamOptions control the forward record scan
	StreamOptions struct {
		// SkipMagic starts the scan mid-stream, without expecting the leading
		// magic bytes. The data-section CRC cannot be validated in this mode
		// and is ignored.
		SkipMagic bool
		// EmitChunks yields the Chunk records raw instead of expanding them
		EmitChunks bool
		// ValidateCRCs verifies the chunk uncompressed CRCs and the
		// data-section CRC when they are present and non-zero
		ValidateCRCs bool
		// RecordSizeLimit rejects the records whose declared length exceeds
		// the limit, before any allocation. 0 means DefaultRecordSizeLimit.
		RecordSizeLimit uint64
	}

	// StreamReader is the lazy forward-only record iterator over a byte
	// source. It verifies the magic framing, optionally expands the chunks
	// inline and optionally validates the checksums. The iterator is
	// single-pass and not restartable.
	StreamReader struct {
		s    *wire.ReadStream
		opts StreamOptions

		magicChecked bool
		footerSeen   bool
		done         bool
		err          error
		pending      []mcap.Record
		next         mcap.Record
	}
)

// DefaultRecordSizeLimit caps a single record at 4 GiB
const DefaultRecordSizeLimit = uint64(4) << 30

var (
	_ iterable.Iterator[mcap.Record] = (*StreamReader)(nil)
	_ iterable.ErrReporter           = (*StreamReader)(nil)
)

// NewStreamReader returns the record iterator over r with the options given
func NewStreamReader(r io.Reader, opts StreamOptions) *StreamReader {
	if opts.RecordSizeLimit == 0 {
		opts.RecordSizeLimit = DefaultRecordSizeLimit
	}
	return &StreamReader{
		s:    wire.NewReadStream(r, opts.ValidateCRCs),
		opts: opts,
	}
}

// HasNext is the part of the iterable.Iterator interface
func (sr *StreamReader) HasNext() bool {
	if sr.next != nil {
		return true
	}
	if sr.done || sr.err != nil {
		return false
	}
	rec, err := sr.read()
	if err != nil {
		sr.err = err
		return false
	}
	sr.next = rec
	return rec != nil
}

// Next is the part of the iterable.Iterator interface
func (sr *StreamReader) Next() (mcap.Record, bool) {
	if !sr.HasNext() {
		return nil, false
	}
	rec := sr.next
	sr.next = nil
	return rec, true
}

// Err returns the error which stopped the iteration, or nil if the stream
// was consumed to its end
func (sr *StreamReader) Err() error {
	return sr.err
}

// Close implements io.Closer
func (sr *StreamReader) Close() error {
	sr.done = true
	sr.pending = nil
	sr.next = nil
	return nil
}

// read returns the next record of the stream, or (nil, nil) when the stream
// is over (the trailing magic has been verified)
func (sr *StreamReader) read() (mcap.Record, error) {
	if !sr.magicChecked {
		if !sr.opts.SkipMagic {
			if err := sr.checkMagic(); err != nil {
				return nil, err
			}
		}
		sr.magicChecked = true
	}
	for {
		if len(sr.pending) > 0 {
			rec := sr.pending[0]
			sr.pending = sr.pending[1:]
			return rec, nil
		}
		if sr.footerSeen {
			if err := sr.checkMagic(); err != nil {
				return nil, err
			}
			sr.done = true
			return nil, nil
		}

		var crcBefore uint32
		if sr.opts.ValidateCRCs && !sr.opts.SkipMagic {
			crcBefore = sr.s.Checksum()
		}
		op, err := sr.s.ReadU8()
		if err != nil {
			return nil, err
		}
		length, err := sr.s.ReadU64()
		if err != nil {
			return nil, err
		}
		if length > sr.opts.RecordSizeLimit {
			return nil, &mcap.RecordLengthError{Op: mcap.Opcode(op), Length: length, Limit: sr.opts.RecordSizeLimit}
		}
		countBefore := sr.s.Count()
		rec, err := mcap.ReadRecord(sr.s, mcap.Opcode(op), length)
		if err != nil {
			return nil, err
		}
		consumed := sr.s.Count() - countBefore
		if consumed > length {
			return nil, fmt.Errorf("%s record payload of %d bytes overruns the declared length %d: %w",
				mcap.Opcode(op), consumed, length, errors.ErrInvalid)
		}
		if consumed < length {
			if err = sr.s.Skip(length - consumed); err != nil {
				return nil, err
			}
		}
		if rec == nil { // unknown opcode, skipped
			continue
		}

		switch r := rec.(type) {
		case *mcap.DataEnd:
			if sr.opts.ValidateCRCs && !sr.opts.SkipMagic && r.DataSectionCRC != 0 && r.DataSectionCRC != crcBefore {
				return nil, &mcap.CRCError{Expected: r.DataSectionCRC, Actual: crcBefore, Record: "data end"}
			}
		case *mcap.Chunk:
			if !sr.opts.EmitChunks {
				recs, err := BreakupChunk(r, sr.opts.ValidateCRCs)
				if err != nil {
					return nil, err
				}
				sr.pending = recs
				continue
			}
		case *mcap.Footer:
			sr.footerSeen = true
		}
		return rec, nil
	}
}

func (sr *StreamReader) checkMagic() error {
	var magic [mcap.MagicSize]byte
	if err := sr.s.ReadInto(magic[:]); err != nil {
		return err
	}
	if !bytes.Equal(magic[:], mcap.Magic) {
		return fmt.Errorf("expected %v, got %v: %w", mcap.Magic, magic[:], mcap.ErrInvalidMagic)
	}
	return nil
}

// BreakupChunk decompresses the chunk payload, verifies its CRC when asked
// for, and decodes the inner records. Only Schema, Channel and Message
// records are expected inside a chunk; anything else is skipped by length.
func BreakupChunk(c *mcap.Chunk, validateCRC bool) ([]mcap.Record, error) {
	data, err := chunkenc.Decompress(c.Compression, c.Records, c.UncompressedSize)
	if err != nil {
		return nil, err
	}
	if validateCRC && c.UncompressedCRC != 0 {
		if actual := crc32.ChecksumIEEE(data); actual != c.UncompressedCRC {
			return nil, &mcap.CRCError{Expected: c.UncompressedCRC, Actual: actual, Record: "chunk"}
		}
	}
	s := wire.NewReadStream(bytes.NewReader(data), false)
	var recs []mcap.Record
	total := uint64(len(data))
	for s.Count() < total {
		op, err := s.ReadU8()
		if err != nil {
			return nil, err
		}
		length, err := s.ReadU64()
		if err != nil {
			return nil, err
		}
		switch mcap.Opcode(op) {
		case mcap.OpSchema, mcap.OpChannel, mcap.OpMessage:
			countBefore := s.Count()
			rec, err := mcap.ReadRecord(s, mcap.Opcode(op), length)
			if err != nil {
				return nil, err
			}
			if consumed := s.Count() - countBefore; consumed > length {
				return nil, fmt.Errorf("%s record payload of %d bytes overruns the declared length %d: %w",
					mcap.Opcode(op), consumed, length, errors.ErrInvalid)
			} else if consumed < length {
				if err = s.Skip(length - consumed); err != nil {
					return nil, err
				}
			}
			recs = append(recs, rec)
		default:
			if err = s.Skip(length); err != nil {
				return nil, err
			}
		}
	}
	return recs, nil
}
