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
	"github.com/solarisdb/mcap/pkg/wire"
)

// minMessageLength is the serialized size of a Message payload with no data
const minMessageLength = 2 + 4 + 8 + 8

// ReadRecord decodes the payload of the record framed by op and length from
// the stream. An unknown opcode is not an error: its payload is skipped by
// the declared length and (nil, nil) is returned. The function never reads
// past the declared length for the known opcodes with a trailing byte buffer
// (Message); for the rest the caller is expected to verify the consumed size
// against the frame.
func ReadRecord(s *wire.ReadStream, op Opcode, length uint64) (Record, error) {
	switch op {
	case OpHeader:
		return readHeader(s)
	case OpFooter:
		return readFooter(s)
	case OpSchema:
		return readSchema(s)
	case OpChannel:
		return readChannel(s)
	case OpMessage:
		return readMessage(s, length)
	case OpChunk:
		return readChunk(s)
	case OpMessageIndex:
		return readMessageIndex(s)
	case OpChunkIndex:
		return readChunkIndex(s)
	case OpAttachment:
		return readAttachment(s)
	case OpAttachmentIndex:
		return readAttachmentIndex(s)
	case OpStatistics:
		return readStatistics(s)
	case OpMetadata:
		return readMetadata(s)
	case OpMetadataIndex:
		return readMetadataIndex(s)
	case OpSummaryOffset:
		return readSummaryOffset(s)
	case OpDataEnd:
		return readDataEnd(s)
	}
	// skip unknown record types
	if err := s.Skip(length); err != nil {
		return nil, err
	}
	return nil, nil
}

func readHeader(s *wire.ReadStream) (Record, error) {
	profile, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	library, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	return &Header{Profile: profile, Library: library}, nil
}

func readFooter(s *wire.ReadStream) (Record, error) {
	summaryStart, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	summaryOffsetStart, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	summaryCRC, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	return &Footer{SummaryStart: summaryStart, SummaryOffsetStart: summaryOffsetStart, SummaryCRC: summaryCRC}, nil
}

func readSchema(s *wire.ReadStream) (Record, error) {
	id, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	name, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	encoding, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	dataLen, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	data, err := s.Read(uint64(dataLen))
	if err != nil {
		return nil, err
	}
	return &Schema{ID: id, Name: name, Encoding: encoding, Data: data}, nil
}

func readChannel(s *wire.ReadStream) (Record, error) {
	id, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	schemaID, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	topic, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	messageEncoding, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	metadata, err := readStringMap(s)
	if err != nil {
		return nil, err
	}
	return &Channel{ID: id, SchemaID: schemaID, Topic: topic, MessageEncoding: messageEncoding, Metadata: metadata}, nil
}

func readMessage(s *wire.ReadStream, length uint64) (Record, error) {
	if length < minMessageLength {
		return nil, fmt.Errorf("message record of %d bytes is shorter than the %d bytes header: %w",
			length, minMessageLength, errors.ErrInvalid)
	}
	channelID, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	sequence, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	logTime, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	publishTime, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	data, err := s.Read(length - minMessageLength)
	if err != nil {
		return nil, err
	}
	return &Message{ChannelID: channelID, Sequence: sequence, LogTime: logTime, PublishTime: publishTime, Data: data}, nil
}

func readChunk(s *wire.ReadStream) (Record, error) {
	messageStartTime, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	messageEndTime, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	uncompressedSize, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	uncompressedCRC, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	compression, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	dataLen, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	records, err := s.Read(dataLen)
	if err != nil {
		return nil, err
	}
	return &Chunk{
		MessageStartTime: messageStartTime,
		MessageEndTime:   messageEndTime,
		UncompressedSize: uncompressedSize,
		UncompressedCRC:  uncompressedCRC,
		Compression:      compression,
		Records:          records,
	}, nil
}

func readMessageIndex(s *wire.ReadStream) (Record, error) {
	channelID, err := s.ReadU16()
	if err != nil {
		return nil, err
	}
	blockLen, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	if blockLen%16 != 0 {
		return nil, fmt.Errorf("message index block of %d bytes is not a whole number of entries: %w",
			blockLen, errors.ErrInvalid)
	}
	recs := make([]MessageIndexEntry, 0, blockLen/16)
	end := s.Count() + uint64(blockLen)
	for s.Count() < end {
		logTime, err := s.ReadU64()
		if err != nil {
			return nil, err
		}
		offset, err := s.ReadU64()
		if err != nil {
			return nil, err
		}
		recs = append(recs, MessageIndexEntry{LogTime: logTime, Offset: offset})
	}
	return &MessageIndex{ChannelID: channelID, Records: recs}, nil
}

func readChunkIndex(s *wire.ReadStream) (Record, error) {
	ci := &ChunkIndex{MessageIndexOffsets: map[uint16]uint64{}}
	var err error
	if ci.MessageStartTime, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ci.MessageEndTime, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ci.ChunkStartOffset, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ci.ChunkLength, err = s.ReadU64(); err != nil {
		return nil, err
	}
	blockLen, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	end := s.Count() + uint64(blockLen)
	for s.Count() < end {
		id, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		offset, err := s.ReadU64()
		if err != nil {
			return nil, err
		}
		ci.MessageIndexOffsets[id] = offset
	}
	if s.Count() != end {
		return nil, fmt.Errorf("message index offsets block of %d bytes overruns its boundary: %w",
			blockLen, errors.ErrInvalid)
	}
	if ci.MessageIndexLength, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ci.Compression, err = s.ReadString(); err != nil {
		return nil, err
	}
	if ci.CompressedSize, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ci.UncompressedSize, err = s.ReadU64(); err != nil {
		return nil, err
	}
	return ci, nil
}

func readAttachment(s *wire.ReadStream) (Record, error) {
	logTime, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	createTime, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	name, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	mediaType, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	dataLen, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	data, err := s.Read(dataLen)
	if err != nil {
		return nil, err
	}
	// the trailing payload checksum is consumed without a verification
	if _, err = s.ReadU32(); err != nil {
		return nil, err
	}
	return &Attachment{LogTime: logTime, CreateTime: createTime, Name: name, MediaType: mediaType, Data: data}, nil
}

func readAttachmentIndex(s *wire.ReadStream) (Record, error) {
	ai := &AttachmentIndex{}
	var err error
	if ai.Offset, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ai.Length, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ai.LogTime, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ai.CreateTime, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ai.DataSize, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if ai.Name, err = s.ReadString(); err != nil {
		return nil, err
	}
	if ai.MediaType, err = s.ReadString(); err != nil {
		return nil, err
	}
	return ai, nil
}

func readStatistics(s *wire.ReadStream) (Record, error) {
	st := &Statistics{ChannelMessageCounts: map[uint16]uint64{}}
	var err error
	if st.MessageCount, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if st.SchemaCount, err = s.ReadU16(); err != nil {
		return nil, err
	}
	if st.ChannelCount, err = s.ReadU32(); err != nil {
		return nil, err
	}
	if st.AttachmentCount, err = s.ReadU32(); err != nil {
		return nil, err
	}
	if st.MetadataCount, err = s.ReadU32(); err != nil {
		return nil, err
	}
	if st.ChunkCount, err = s.ReadU32(); err != nil {
		return nil, err
	}
	if st.MessageStartTime, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if st.MessageEndTime, err = s.ReadU64(); err != nil {
		return nil, err
	}
	blockLen, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	end := s.Count() + uint64(blockLen)
	for s.Count() < end {
		id, err := s.ReadU16()
		if err != nil {
			return nil, err
		}
		count, err := s.ReadU64()
		if err != nil {
			return nil, err
		}
		st.ChannelMessageCounts[id] = count
	}
	if s.Count() != end {
		return nil, fmt.Errorf("channel message counts block of %d bytes overruns its boundary: %w",
			blockLen, errors.ErrInvalid)
	}
	return st, nil
}

func readMetadata(s *wire.ReadStream) (Record, error) {
	name, err := s.ReadString()
	if err != nil {
		return nil, err
	}
	metadata, err := readStringMap(s)
	if err != nil {
		return nil, err
	}
	return &Metadata{Name: name, Metadata: metadata}, nil
}

func readMetadataIndex(s *wire.ReadStream) (Record, error) {
	mi := &MetadataIndex{}
	var err error
	if mi.Offset, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if mi.Length, err = s.ReadU64(); err != nil {
		return nil, err
	}
	if mi.Name, err = s.ReadString(); err != nil {
		return nil, err
	}
	return mi, nil
}

func readSummaryOffset(s *wire.ReadStream) (Record, error) {
	groupOpcode, err := s.ReadU8()
	if err != nil {
		return nil, err
	}
	groupStart, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	groupLength, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	return &SummaryOffset{GroupOpcode: Opcode(groupOpcode), GroupStart: groupStart, GroupLength: groupLength}, nil
}

func readDataEnd(s *wire.ReadStream) (Record, error) {
	crc, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	return &DataEnd{DataSectionCRC: crc}, nil
}

func readStringMap(s *wire.ReadStream) (StringMap, error) {
	blockLen, err := s.ReadU32()
	if err != nil {
		return nil, err
	}
	var sm StringMap
	end := s.Count() + uint64(blockLen)
	for s.Count() < end {
		key, err := s.ReadString()
		if err != nil {
			return nil, err
		}
		value, err := s.ReadString()
		if err != nil {
			return nil, err
		}
		sm = append(sm, StringPair{Key: key, Value: value})
	}
	if s.Count() != end {
		return nil, fmt.Errorf("string map block of %d bytes overruns its boundary: %w", blockLen, errors.ErrInvalid)
	}
	return sm, nil
}
