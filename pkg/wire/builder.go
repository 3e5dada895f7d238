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
package wire

import "encoding/binary"

// RecordBuilder accumulates serialized records in memory. A record is framed
// as opcode|u64 length|payload; the builder writes a placeholder length on
// StartRecord and backpatches the real value on FinishRecord, so the payload
// writers never have to know their size upfront.
type RecordBuilder struct {
	buf      []byte
	recStart int
}

// FrameSize is the size of the opcode|u64 length prefix of every record
const FrameSize = 1 + 8

// Count returns the number of bytes accumulated so far
func (b *RecordBuilder) Count() uint64 {
	return uint64(len(b.buf))
}

// StartRecord opens a record with the op given
func (b *RecordBuilder) StartRecord(op byte) {
	b.recStart = len(b.buf)
	b.buf = append(b.buf, op, 0, 0, 0, 0, 0, 0, 0, 0)
}

// FinishRecord backpatches the length of the record opened by the last StartRecord
func (b *RecordBuilder) FinishRecord() {
	length := uint64(len(b.buf) - b.recStart - FrameSize)
	binary.LittleEndian.PutUint64(b.buf[b.recStart+1:], length)
}

// End returns the accumulated bytes and resets the builder for reuse
func (b *RecordBuilder) End() []byte {
	res := b.buf
	b.buf = nil
	b.recStart = 0
	return res
}

// Write appends p as is
func (b *RecordBuilder) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// WriteU8 appends one byte
func (b *RecordBuilder) WriteU8(v uint8) {
	b.buf = append(b.buf, v)
}

// WriteU16 appends v little-endian
func (b *RecordBuilder) WriteU16(v uint16) {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
}

// WriteU32 appends v little-endian
func (b *RecordBuilder) WriteU32(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

// WriteU64 appends v little-endian
func (b *RecordBuilder) WriteU64(v uint64) {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
}

// WriteString appends the u32 byte-length prefix and the UTF-8 bytes of v
func (b *RecordBuilder) WriteString(v string) {
	b.WriteU32(uint32(len(v)))
	b.buf = append(b.buf, v...)
}
