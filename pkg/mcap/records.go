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

// Package mcap defines the record universe of the MCAP container format:
// the record types, their opcodes, the well-known constants and the binary
// encoding and decoding of every record variant.
package mcap

import (
	"hash/crc32"
	"sort"

	"github.com/solarisdb/mcap/pkg/wire"
)

type (
	// Record is a serializable unit of the container. Every record is framed
	// as opcode|u64 length|payload on the wire.
	Record interface {
		// Op returns the record opcode
		Op() Opcode
		// Write serializes the record with its frame into the builder
		Write(b *wire.RecordBuilder)
	}

	// Header opens the data section of a file
	Header struct {
		Profile string
		Library string
	}

	// Footer terminates a file and locates the summary section
	Footer struct {
		SummaryStart       uint64
		SummaryOffsetStart uint64
		SummaryCRC         uint32
	}

	// Schema describes the payload structure of the channels referencing it
	Schema struct {
		ID       uint16
		Name     string
		Encoding string
		Data     []byte
	}

	// Channel is a logical stream identified by a topic. SchemaID 0 means
	// the channel is schemaless.
	Channel struct {
		ID              uint16
		SchemaID        uint16
		Topic           string
		MessageEncoding string
		Metadata        StringMap
	}

	// Message carries one opaque timestamped payload of a channel
	Message struct {
		ChannelID   uint16
		Sequence    uint32
		LogTime     uint64
		PublishTime uint64
		Data        []byte
	}

	// Chunk bundles Schema, Channel and Message records compressed and
	// framed as a single record. UncompressedCRC 0 means unchecked.
	Chunk struct {
		MessageStartTime uint64
		MessageEndTime   uint64
		UncompressedSize uint64
		UncompressedCRC  uint32
		Compression      string
		Records          []byte
	}

	// MessageIndexEntry locates one message inside the uncompressed chunk payload
	MessageIndexEntry struct {
		LogTime uint64
		Offset  uint64
	}

	// MessageIndex is the per-channel table of message positions, emitted
	// right after the chunk it describes
	MessageIndex struct {
		ChannelID uint16
		Records   []MessageIndexEntry
	}

	// ChunkIndex is the summary-section entry describing a chunk's file
	// offset, time range and MessageIndex locations
	ChunkIndex struct {
		MessageStartTime    uint64
		MessageEndTime      uint64
		ChunkStartOffset    uint64
		ChunkLength         uint64
		MessageIndexOffsets map[uint16]uint64
		MessageIndexLength  uint64
		Compression         string
		CompressedSize      uint64
		UncompressedSize    uint64
	}

	// Attachment is an arbitrary named blob stored outside the chunks. The
	// serialized record carries a trailing CRC32 over the payload frame.
	Attachment struct {
		LogTime    uint64
		CreateTime uint64
		Name       string
		MediaType  string
		Data       []byte
	}

	// AttachmentIndex is the summary-section entry locating an Attachment
	AttachmentIndex struct {
		Offset     uint64
		Length     uint64
		LogTime    uint64
		CreateTime uint64
		DataSize   uint64
		Name       string
		MediaType  string
	}

	// Statistics is the summary-section rollup of the file content
	Statistics struct {
		MessageCount         uint64
		SchemaCount          uint16
		ChannelCount         uint32
		AttachmentCount      uint32
		MetadataCount        uint32
		ChunkCount           uint32
		MessageStartTime     uint64
		MessageEndTime       uint64
		ChannelMessageCounts map[uint16]uint64
	}

	// Metadata is a named set of key-value pairs stored outside the chunks
	Metadata struct {
		Name     string
		Metadata StringMap
	}

	// MetadataIndex is the summary-section entry locating a Metadata record
	MetadataIndex struct {
		Offset uint64
		Length uint64
		Name   string
	}

	// SummaryOffset describes one contiguous group of same-opcode records
	// within the summary section
	SummaryOffset struct {
		GroupOpcode Opcode
		GroupStart  uint64
		GroupLength uint64
	}

	// DataEnd terminates the data section. DataSectionCRC 0 means unchecked.
	DataEnd struct {
		DataSectionCRC uint32
	}
)

func (r *Header) Op() Opcode          { return OpHeader }
func (r *Footer) Op() Opcode          { return OpFooter }
func (r *Schema) Op() Opcode          { return OpSchema }
func (r *Channel) Op() Opcode         { return OpChannel }
func (r *Message) Op() Opcode         { return OpMessage }
func (r *Chunk) Op() Opcode           { return OpChunk }
func (r *MessageIndex) Op() Opcode    { return OpMessageIndex }
func (r *ChunkIndex) Op() Opcode      { return OpChunkIndex }
func (r *Attachment) Op() Opcode      { return OpAttachment }
func (r *AttachmentIndex) Op() Opcode { return OpAttachmentIndex }
func (r *Statistics) Op() Opcode      { return OpStatistics }
func (r *Metadata) Op() Opcode        { return OpMetadata }
func (r *MetadataIndex) Op() Opcode   { return OpMetadataIndex }
func (r *SummaryOffset) Op() Opcode   { return OpSummaryOffset }
func (r *DataEnd) Op() Opcode         { return OpDataEnd }

// Write implements Record
func (r *Header) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpHeader))
	b.WriteString(r.Profile)
	b.WriteString(r.Library)
	b.FinishRecord()
}

// Write implements Record
func (r *Footer) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpFooter))
	b.WriteU64(r.SummaryStart)
	b.WriteU64(r.SummaryOffsetStart)
	b.WriteU32(r.SummaryCRC)
	b.FinishRecord()
}

// Write implements Record
func (r *Schema) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpSchema))
	b.WriteU16(r.ID)
	b.WriteString(r.Name)
	b.WriteString(r.Encoding)
	b.WriteU32(uint32(len(r.Data)))
	b.Write(r.Data)
	b.FinishRecord()
}

// Write implements Record
func (r *Channel) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpChannel))
	b.WriteU16(r.ID)
	b.WriteU16(r.SchemaID)
	b.WriteString(r.Topic)
	b.WriteString(r.MessageEncoding)
	writeStringMap(b, r.Metadata)
	b.FinishRecord()
}

// Write implements Record
func (r *Message) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpMessage))
	b.WriteU16(r.ChannelID)
	b.WriteU32(r.Sequence)
	b.WriteU64(r.LogTime)
	b.WriteU64(r.PublishTime)
	b.Write(r.Data)
	b.FinishRecord()
}

// Write implements Record
func (r *Chunk) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpChunk))
	b.WriteU64(r.MessageStartTime)
	b.WriteU64(r.MessageEndTime)
	b.WriteU64(r.UncompressedSize)
	b.WriteU32(r.UncompressedCRC)
	b.WriteString(r.Compression)
	b.WriteU64(uint64(len(r.Records)))
	b.Write(r.Records)
	b.FinishRecord()
}

// Write implements Record
func (r *MessageIndex) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpMessageIndex))
	b.WriteU16(r.ChannelID)
	b.WriteU32(uint32(len(r.Records) * 16))
	for _, e := range r.Records {
		b.WriteU64(e.LogTime)
		b.WriteU64(e.Offset)
	}
	b.FinishRecord()
}

// Write implements Record
func (r *ChunkIndex) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpChunkIndex))
	b.WriteU64(r.MessageStartTime)
	b.WriteU64(r.MessageEndTime)
	b.WriteU64(r.ChunkStartOffset)
	b.WriteU64(r.ChunkLength)
	b.WriteU32(uint32(len(r.MessageIndexOffsets) * 10))
	for _, id := range sortedChannelIDs(r.MessageIndexOffsets) {
		b.WriteU16(id)
		b.WriteU64(r.MessageIndexOffsets[id])
	}
	b.WriteU64(r.MessageIndexLength)
	b.WriteString(r.Compression)
	b.WriteU64(r.CompressedSize)
	b.WriteU64(r.UncompressedSize)
	b.FinishRecord()
}

// Write implements Record. The trailing CRC32 covers the payload as
// serialized, the frame and the CRC bytes themselves excluded.
func (r *Attachment) Write(b *wire.RecordBuilder) {
	var ab wire.RecordBuilder
	ab.StartRecord(byte(OpAttachment))
	ab.WriteU64(r.LogTime)
	ab.WriteU64(r.CreateTime)
	ab.WriteString(r.Name)
	ab.WriteString(r.MediaType)
	ab.WriteU64(uint64(len(r.Data)))
	ab.Write(r.Data)
	ab.WriteU32(0) // crc placeholder
	ab.FinishRecord()
	data := ab.End()
	crc := crc32.ChecksumIEEE(data[wire.FrameSize : len(data)-4])
	b.Write(data[:len(data)-4])
	b.WriteU32(crc)
}

// Write implements Record
func (r *AttachmentIndex) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpAttachmentIndex))
	b.WriteU64(r.Offset)
	b.WriteU64(r.Length)
	b.WriteU64(r.LogTime)
	b.WriteU64(r.CreateTime)
	b.WriteU64(r.DataSize)
	b.WriteString(r.Name)
	b.WriteString(r.MediaType)
	b.FinishRecord()
}

// Write implements Record
func (r *Statistics) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpStatistics))
	b.WriteU64(r.MessageCount)
	b.WriteU16(r.SchemaCount)
	b.WriteU32(r.ChannelCount)
	b.WriteU32(r.AttachmentCount)
	b.WriteU32(r.MetadataCount)
	b.WriteU32(r.ChunkCount)
	b.WriteU64(r.MessageStartTime)
	b.WriteU64(r.MessageEndTime)
	b.WriteU32(uint32(len(r.ChannelMessageCounts) * 10))
	for _, id := range sortedChannelIDs(r.ChannelMessageCounts) {
		b.WriteU16(id)
		b.WriteU64(r.ChannelMessageCounts[id])
	}
	b.FinishRecord()
}

// Write implements Record
func (r *Metadata) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpMetadata))
	b.WriteString(r.Name)
	writeStringMap(b, r.Metadata)
	b.FinishRecord()
}

// Write implements Record
func (r *MetadataIndex) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpMetadataIndex))
	b.WriteU64(r.Offset)
	b.WriteU64(r.Length)
	b.WriteString(r.Name)
	b.FinishRecord()
}

// Write implements Record
func (r *SummaryOffset) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpSummaryOffset))
	b.WriteU8(byte(r.GroupOpcode))
	b.WriteU64(r.GroupStart)
	b.WriteU64(r.GroupLength)
	b.FinishRecord()
}

// Write implements Record
func (r *DataEnd) Write(b *wire.RecordBuilder) {
	b.StartRecord(byte(OpDataEnd))
	b.WriteU32(r.DataSectionCRC)
	b.FinishRecord()
}

func writeStringMap(b *wire.RecordBuilder, sm StringMap) {
	b.WriteU32(sm.byteLen())
	for _, p := range sm {
		b.WriteString(p.Key)
		b.WriteString(p.Value)
	}
}

// sortedChannelIDs fixes the serialization order of the channel-keyed maps,
// so repeated serializations of the same record produce the same bytes
func sortedChannelIDs(m map[uint16]uint64) []uint16 {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FooterLength is the full serialized size of a Footer record with its frame
const FooterLength = wire.FrameSize + 8 + 8 + 4
