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
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/solarisdb/mcap/pkg/wire"
	"github.com/stretchr/testify/assert"
)

// roundTrip serializes the record, decodes it back and checks that the
// decode consumed exactly the declared length
func roundTrip(t *testing.T, rec Record) Record {
	t.Helper()
	var b wire.RecordBuilder
	rec.Write(&b)
	data := b.End()

	s := wire.NewReadStream(bytes.NewReader(data), false)
	op, err := s.ReadU8()
	assert.Nil(t, err)
	assert.Equal(t, byte(rec.Op()), op)
	length, err := s.ReadU64()
	assert.Nil(t, err)
	assert.Equal(t, uint64(len(data)-wire.FrameSize), length)

	decoded, err := ReadRecord(s, Opcode(op), length)
	assert.Nil(t, err)
	assert.Equal(t, uint64(len(data)), s.Count())
	return decoded
}

func TestRoundTrip_Header(t *testing.T) {
	r := &Header{Profile: ProfileROS2, Library: "solarisdb mcap"}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_Footer(t *testing.T) {
	r := &Footer{SummaryStart: 1234, SummaryOffsetStart: 5678, SummaryCRC: 0xdeadbeef}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_Schema(t *testing.T) {
	r := &Schema{ID: 3, Name: "pkg/Type", Encoding: SchemaEncodingJSONSchema, Data: []byte(`{"type":"object"}`)}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_Channel(t *testing.T) {
	r := &Channel{
		ID:              7,
		SchemaID:        3,
		Topic:           "/camera/front",
		MessageEncoding: MessageEncodingCDR,
		Metadata:        NewStringMap("b", "2", "a", "1"),
	}
	decoded := roundTrip(t, r)
	assert.Equal(t, r, decoded)
	// the insertion order survives the round-trip
	assert.Equal(t, "b", decoded.(*Channel).Metadata[0].Key)
}

func TestRoundTrip_Message(t *testing.T) {
	r := &Message{ChannelID: 7, Sequence: 42, LogTime: 100, PublishTime: 99, Data: []byte("payload")}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_Chunk(t *testing.T) {
	r := &Chunk{
		MessageStartTime: 1,
		MessageEndTime:   9,
		UncompressedSize: 100,
		UncompressedCRC:  777,
		Compression:      CompressionLZ4,
		Records:          []byte("compressed bytes here"),
	}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_MessageIndex(t *testing.T) {
	r := &MessageIndex{ChannelID: 2, Records: []MessageIndexEntry{{LogTime: 5, Offset: 0}, {LogTime: 1, Offset: 33}}}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_ChunkIndex(t *testing.T) {
	r := &ChunkIndex{
		MessageStartTime:    1,
		MessageEndTime:      9,
		ChunkStartOffset:    100,
		ChunkLength:         500,
		MessageIndexOffsets: map[uint16]uint64{1: 600, 2: 640},
		MessageIndexLength:  80,
		Compression:         CompressionZstd,
		CompressedSize:      400,
		UncompressedSize:    450,
	}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_Attachment(t *testing.T) {
	r := &Attachment{LogTime: 2, CreateTime: 1, Name: "scene1.jpg", MediaType: "image/jpeg", Data: []byte("jpegdata")}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestAttachment_TrailingCRC(t *testing.T) {
	r := &Attachment{LogTime: 2, CreateTime: 1, Name: "a", MediaType: "text/plain", Data: []byte("foo")}
	var b wire.RecordBuilder
	r.Write(&b)
	data := b.End()
	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	assert.Equal(t, crc32.ChecksumIEEE(data[wire.FrameSize:len(data)-4]), stored)
	assert.NotEqual(t, uint32(0), stored)
}

func TestRoundTrip_AttachmentIndex(t *testing.T) {
	r := &AttachmentIndex{Offset: 10, Length: 20, LogTime: 2, CreateTime: 1, DataSize: 3, Name: "a", MediaType: "text/plain"}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_Statistics(t *testing.T) {
	r := &Statistics{
		MessageCount:         10,
		SchemaCount:          1,
		ChannelCount:         2,
		AttachmentCount:      3,
		MetadataCount:        4,
		ChunkCount:           5,
		MessageStartTime:     0,
		MessageEndTime:       100,
		ChannelMessageCounts: map[uint16]uint64{1: 6, 2: 4},
	}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_Metadata(t *testing.T) {
	r := &Metadata{Name: "m", Metadata: NewStringMap("k", "v")}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_MetadataIndex(t *testing.T) {
	r := &MetadataIndex{Offset: 5, Length: 6, Name: "m"}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_SummaryOffset(t *testing.T) {
	r := &SummaryOffset{GroupOpcode: OpSchema, GroupStart: 100, GroupLength: 30}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestRoundTrip_DataEnd(t *testing.T) {
	r := &DataEnd{DataSectionCRC: 555}
	assert.Equal(t, r, roundTrip(t, r))
}

func TestReadRecord_UnknownOpcode(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	s := wire.NewReadStream(bytes.NewReader(payload), false)
	rec, err := ReadRecord(s, Opcode(0x80), uint64(len(payload)))
	assert.Nil(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, uint64(len(payload)), s.Count())
}

func TestReadMessage_TooShort(t *testing.T) {
	s := wire.NewReadStream(bytes.NewReader(make([]byte, 10)), false)
	_, err := ReadRecord(s, OpMessage, 10)
	assert.NotNil(t, err)
}

func TestStringMap(t *testing.T) {
	sm := NewStringMap("k1", "v1", "k2", "v2")
	v, ok := sm.Get("k2")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
	_, ok = sm.Get("k3")
	assert.False(t, ok)
	assert.True(t, sm.Equal(NewStringMap("k1", "v1", "k2", "v2")))
	assert.False(t, sm.Equal(NewStringMap("k2", "v2", "k1", "v1")))
	assert.True(t, StringMap(nil).Equal(StringMap{}))
	assert.Panics(t, func() {
		NewStringMap("odd")
	})
}

func TestFooterLength(t *testing.T) {
	var b wire.RecordBuilder
	(&Footer{}).Write(&b)
	assert.Equal(t, FooterLength, len(b.End()))
}
