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
package mcap

import (
	"fmt"

	"github.com/solarisdb/mcap/golibs/errors"
)

// ErrInvalidMagic is reported when the magic bytes at the start or at the
// end of a stream do not match Magic.
var ErrInvalidMagic = fmt.Errorf("not an MCAP stream, invalid magic: %w", errors.ErrDataLoss)

// CRCError is reported when a stored checksum does not match the calculated
// one. Record names the checked region kind: "chunk" for the uncompressed
// payload of a chunk or "data end" for the data section. The readers do not
// verify the summary and the attachment checksums.
type CRCError struct {
	// Expected is the checksum stored in the file
	Expected uint32
	// Actual is the checksum calculated over the covered bytes
	Actual uint32
	// Record is the kind of the record which carried the checksum
	Record string
}

// Error implements the error interface
func (e *CRCError) Error() string {
	return fmt.Sprintf("crc validation failed in %s, expected: %d, calculated: %d", e.Record, e.Expected, e.Actual)
}

// Unwrap makes the error match errors.ErrDataLoss
func (e *CRCError) Unwrap() error {
	return errors.ErrDataLoss
}

// RecordLengthError is reported when a framed record declares a length above
// the configured cap. It is raised before the payload allocation.
type RecordLengthError struct {
	Op     Opcode
	Length uint64
	Limit  uint64
}

// Error implements the error interface
func (e *RecordLengthError) Error() string {
	return fmt.Sprintf("%s record has length %d that exceeds limit %d", e.Op, e.Length, e.Limit)
}

// Unwrap makes the error match errors.ErrExhausted
func (e *RecordLengthError) Unwrap() error {
	return errors.ErrExhausted
}
