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

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/stretchr/testify/assert"
)

func TestReadStream_Primitives(t *testing.T) {
	var b RecordBuilder
	b.WriteU8(0x12)
	b.WriteU16(0x3456)
	b.WriteU32(0x789abcde)
	b.WriteU64(0x0123456789abcdef)
	b.WriteString("привет")

	s := NewReadStream(bytes.NewReader(b.End()), false)
	v8, err := s.ReadU8()
	assert.Nil(t, err)
	assert.Equal(t, uint8(0x12), v8)
	v16, err := s.ReadU16()
	assert.Nil(t, err)
	assert.Equal(t, uint16(0x3456), v16)
	v32, err := s.ReadU32()
	assert.Nil(t, err)
	assert.Equal(t, uint32(0x789abcde), v32)
	v64, err := s.ReadU64()
	assert.Nil(t, err)
	assert.Equal(t, uint64(0x0123456789abcdef), v64)
	str, err := s.ReadString()
	assert.Nil(t, err)
	assert.Equal(t, "привет", str)
	assert.Equal(t, uint64(1+2+4+8+4+len("привет")), s.Count())
}

func TestReadStream_ShortRead(t *testing.T) {
	s := NewReadStream(bytes.NewReader([]byte{1, 2}), false)
	_, err := s.ReadU32()
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestReadStream_BadUTF8(t *testing.T) {
	var b RecordBuilder
	b.WriteU32(2)
	b.Write([]byte{0xff, 0xfe})
	s := NewReadStream(bytes.NewReader(b.End()), false)
	_, err := s.ReadString()
	assert.True(t, errors.Is(err, errors.ErrInvalid))
}

func TestReadStream_RunningCRC(t *testing.T) {
	data := []byte("the running checksum covers every consumed byte")
	s := NewReadStream(bytes.NewReader(data), true)
	_, err := s.Read(10)
	assert.Nil(t, err)
	assert.Equal(t, crc32.ChecksumIEEE(data[:10]), s.Checksum())
	assert.Nil(t, s.Skip(5))
	assert.Equal(t, crc32.ChecksumIEEE(data[:15]), s.Checksum())

	s2 := NewReadStream(bytes.NewReader(data), false)
	assert.Panics(t, func() {
		s2.Checksum()
	})
}

func TestRecordBuilder_Backpatch(t *testing.T) {
	var b RecordBuilder
	b.StartRecord(0x42)
	b.WriteU64(77)
	b.WriteString("abc")
	b.FinishRecord()
	data := b.End()

	assert.Equal(t, byte(0x42), data[0])
	assert.Equal(t, uint64(8+4+3), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, FrameSize+8+4+3, len(data))
}

func TestRecordBuilder_TwoRecords(t *testing.T) {
	var b RecordBuilder
	b.StartRecord(0x01)
	b.WriteU32(1)
	b.FinishRecord()
	b.StartRecord(0x02)
	b.WriteU16(2)
	b.FinishRecord()
	data := b.End()

	assert.Equal(t, uint64(4), binary.LittleEndian.Uint64(data[1:9]))
	second := data[FrameSize+4:]
	assert.Equal(t, byte(0x02), second[0])
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(second[1:9]))

	// the builder is reusable after End()
	b.StartRecord(0x03)
	b.FinishRecord()
	assert.Equal(t, uint64(FrameSize), b.Count())
}
