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

// Package writer produces MCAP files. The writer is append-first: the
// messages flow into the chunk builder, the finished chunks are emitted
// with their message indexes, and Finish() seals the file with the summary
// section and the footer. OpenAppend() re-opens a finished file in place
// and resumes writing while preserving the original records.
package writer

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/golibs/logging"
	"github.com/solarisdb/mcap/golibs/ulidutils"
	"github.com/solarisdb/mcap/pkg/chunkenc"
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/wire"
)

type writerState int

const (
	wsInit writerState = iota
	wsWriting
	wsFinished
)

// Writer builds the records, batches them into the chunks and emits the
// summary and the footer on Finish. All the methods must be called from one
// go-routine; the writer never repairs a partial file after an I/O error.
type Writer struct {
	w    io.Writer
	f    *os.File // non-nil when the writer owns the backing file
	opts Options

	state writerState
	rb    wire.RecordBuilder
	// pos is the number of bytes written to w so far
	pos     uint64
	dataCRC uint32

	schemas       []*mcap.Schema
	channels      []*mcap.Channel
	schemasByName map[string]*mcap.Schema
	chansByTopic  map[string]*mcap.Channel
	// appendMode turns the re-registration of the known names into the
	// exact-equality checks instead of blind id assignment
	appendMode bool

	chunk             *chunkBuilder
	chunkIndexes      []*mcap.ChunkIndex
	attachmentIndexes []*mcap.AttachmentIndex
	metadataIndexes   []*mcap.MetadataIndex
	stats             mcap.Statistics

	logger logging.Logger
}

// NewWriter returns the Writer emitting into w with the options given
func NewWriter(w io.Writer, opts Options) *Writer {
	wr := &Writer{
		w:             w,
		opts:          opts,
		schemasByName: map[string]*mcap.Schema{},
		chansByTopic:  map[string]*mcap.Channel{},
		stats:         mcap.Statistics{ChannelMessageCounts: map[uint16]uint64{}},
		logger:        logging.NewLogger(fmt.Sprintf("mcap.Writer.%s", ulidutils.NewID())),
	}
	if opts.UseChunking {
		wr.chunk = newChunkBuilder()
	}
	return wr
}

// NewFileWriter creates the file at path and returns the Writer owning it.
// The file is closed by Finish.
func NewFileWriter(path string, opts Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create file %s: %w", path, err)
	}
	wr := NewWriter(f, opts)
	wr.f = f
	return wr, nil
}

// Start writes the leading magic and the Header record. It is the only
// valid transition out of the initial state.
func (w *Writer) Start(profile, library string) error {
	if w.state != wsInit {
		return fmt.Errorf("Start() is not allowed in the current writer state: %w", errors.ErrInvalid)
	}
	if !chunkenc.Supported(w.opts.Compression) {
		return fmt.Errorf("unsupported compression %q: %w", w.opts.Compression, errors.ErrInvalid)
	}
	w.state = wsWriting
	if err := w.writeRaw(mcap.Magic, w.opts.EnableDataCRCs); err != nil {
		return err
	}
	hdr := &mcap.Header{Profile: profile, Library: library}
	hdr.Write(&w.rb)
	w.logger.Debugf("started, profile=%q library=%q", profile, library)
	return w.flush()
}

// RegisterSchema assigns the next schema id to the tuple and returns it. In
// the append mode a tuple equal to an already known schema of the same name
// returns the existing id, and a differing tuple under a known name fails.
func (w *Writer) RegisterSchema(name, encoding string, data []byte) (uint16, error) {
	if err := w.checkWriting(); err != nil {
		return 0, err
	}
	if w.appendMode {
		if known := w.schemasByName[name]; known != nil {
			if known.Encoding == encoding && string(known.Data) == string(data) {
				return known.ID, nil
			}
			return 0, fmt.Errorf("schema %q differs from previous schema record: %w", name, errors.ErrConflict)
		}
	}
	schema := &mcap.Schema{ID: uint16(len(w.schemas) + 1), Name: name, Encoding: encoding, Data: data}
	w.schemas = append(w.schemas, schema)
	w.schemasByName[name] = schema
	w.stats.SchemaCount++
	if w.chunk != nil {
		w.chunk.addSchema(schema)
		if err := w.maybeFinalizeChunk(); err != nil {
			return 0, err
		}
		return schema.ID, nil
	}
	schema.Write(&w.rb)
	return schema.ID, w.flush()
}

// RegisterChannel assigns the next channel id to the tuple and returns it.
// A non-zero schemaID must reference a schema registered before.
func (w *Writer) RegisterChannel(topic, messageEncoding string, schemaID uint16, metadata mcap.StringMap) (uint16, error) {
	if err := w.checkWriting(); err != nil {
		return 0, err
	}
	if schemaID != 0 && int(schemaID) > len(w.schemas) {
		return 0, fmt.Errorf("channel %q references the unknown schema id %d: %w", topic, schemaID, errors.ErrInvalid)
	}
	if w.appendMode {
		if known := w.chansByTopic[topic]; known != nil {
			if known.MessageEncoding == messageEncoding && known.SchemaID == schemaID && known.Metadata.Equal(metadata) {
				return known.ID, nil
			}
			return 0, fmt.Errorf("channel %q differs from previous channel record: %w", topic, errors.ErrConflict)
		}
	}
	channel := &mcap.Channel{
		ID:              uint16(len(w.channels) + 1),
		SchemaID:        schemaID,
		Topic:           topic,
		MessageEncoding: messageEncoding,
		Metadata:        metadata,
	}
	w.channels = append(w.channels, channel)
	w.chansByTopic[topic] = channel
	w.stats.ChannelCount++
	if w.chunk != nil {
		w.chunk.addChannel(channel)
		if err := w.maybeFinalizeChunk(); err != nil {
			return 0, err
		}
		return channel.ID, nil
	}
	channel.Write(&w.rb)
	return channel.ID, w.flush()
}

// AddMessage appends the message to the current chunk (or straight to the
// data section when the chunking is off)
func (w *Writer) AddMessage(channelID uint16, logTime, publishTime uint64, sequence uint32, data []byte) error {
	if err := w.checkWriting(); err != nil {
		return err
	}
	if channelID == 0 || int(channelID) > len(w.channels) {
		return fmt.Errorf("message references the unknown channel id %d: %w", channelID, errors.ErrInvalid)
	}
	msg := &mcap.Message{ChannelID: channelID, Sequence: sequence, LogTime: logTime, PublishTime: publishTime, Data: data}
	if w.stats.MessageCount == 0 {
		w.stats.MessageStartTime = logTime
	} else if logTime < w.stats.MessageStartTime {
		w.stats.MessageStartTime = logTime
	}
	if logTime > w.stats.MessageEndTime {
		w.stats.MessageEndTime = logTime
	}
	w.stats.MessageCount++
	w.stats.ChannelMessageCounts[channelID]++
	if w.chunk != nil {
		w.chunk.addMessage(msg)
		return w.maybeFinalizeChunk()
	}
	msg.Write(&w.rb)
	return w.flush()
}

// AddAttachment flushes the partial chunk, writes the Attachment record and
// registers its index
func (w *Writer) AddAttachment(logTime, createTime uint64, name, mediaType string, data []byte) error {
	if err := w.checkWriting(); err != nil {
		return err
	}
	if err := w.finalizeChunk(); err != nil {
		return err
	}
	offset := w.pos
	att := &mcap.Attachment{LogTime: logTime, CreateTime: createTime, Name: name, MediaType: mediaType, Data: data}
	att.Write(&w.rb)
	length := w.rb.Count()
	w.stats.AttachmentCount++
	if w.opts.IndexTypes&IndexAttachment != 0 {
		w.attachmentIndexes = append(w.attachmentIndexes, &mcap.AttachmentIndex{
			Offset:     offset,
			Length:     length,
			LogTime:    logTime,
			CreateTime: createTime,
			DataSize:   uint64(len(data)),
			Name:       name,
			MediaType:  mediaType,
		})
	}
	return w.flush()
}

// AddMetadata flushes the partial chunk, writes the Metadata record and
// registers its index
func (w *Writer) AddMetadata(name string, metadata mcap.StringMap) error {
	if err := w.checkWriting(); err != nil {
		return err
	}
	if err := w.finalizeChunk(); err != nil {
		return err
	}
	offset := w.pos
	md := &mcap.Metadata{Name: name, Metadata: metadata}
	md.Write(&w.rb)
	length := w.rb.Count()
	w.stats.MetadataCount++
	if w.opts.IndexTypes&IndexMetadata != 0 {
		w.metadataIndexes = append(w.metadataIndexes, &mcap.MetadataIndex{Offset: offset, Length: length, Name: name})
	}
	return w.flush()
}

// Finish finalizes the trailing chunk, writes DataEnd, the summary section,
// the footer and the trailing magic. Repeated calls are no-ops.
func (w *Writer) Finish() error {
	if w.state == wsFinished {
		return nil
	}
	if err := w.checkWriting(); err != nil {
		return err
	}
	if err := w.finalizeChunk(); err != nil {
		return err
	}

	de := &mcap.DataEnd{}
	if w.opts.EnableDataCRCs {
		de.DataSectionCRC = w.dataCRC
	}
	de.Write(&w.rb)
	if err := w.flush(); err != nil {
		return err
	}

	summaryStart := w.pos
	var sb wire.RecordBuilder
	var summaryOffsets []*mcap.SummaryOffset
	group := func(op mcap.Opcode, write func(b *wire.RecordBuilder)) {
		groupStart := sb.Count()
		write(&sb)
		summaryOffsets = append(summaryOffsets, &mcap.SummaryOffset{
			GroupOpcode: op,
			GroupStart:  summaryStart + groupStart,
			GroupLength: sb.Count() - groupStart,
		})
	}

	if w.opts.RepeatSchemas {
		group(mcap.OpSchema, func(b *wire.RecordBuilder) {
			for _, s := range w.schemas {
				s.Write(b)
			}
		})
	}
	if w.opts.RepeatChannels {
		group(mcap.OpChannel, func(b *wire.RecordBuilder) {
			for _, c := range w.channels {
				c.Write(b)
			}
		})
	}
	if w.opts.UseStatistics {
		group(mcap.OpStatistics, func(b *wire.RecordBuilder) {
			w.stats.Write(b)
		})
	}
	if w.opts.IndexTypes&IndexChunk != 0 {
		group(mcap.OpChunkIndex, func(b *wire.RecordBuilder) {
			for _, ci := range w.chunkIndexes {
				ci.Write(b)
			}
		})
	}
	if w.opts.IndexTypes&IndexAttachment != 0 {
		group(mcap.OpAttachmentIndex, func(b *wire.RecordBuilder) {
			for _, ai := range w.attachmentIndexes {
				ai.Write(b)
			}
		})
	}
	if w.opts.IndexTypes&IndexMetadata != 0 {
		group(mcap.OpMetadataIndex, func(b *wire.RecordBuilder) {
			for _, mi := range w.metadataIndexes {
				mi.Write(b)
			}
		})
	}

	summaryOffsetStart := uint64(0)
	if w.opts.UseSummaryOffsets {
		summaryOffsetStart = summaryStart + sb.Count()
		for _, so := range summaryOffsets {
			so.Write(&sb)
		}
	}

	summaryData := sb.End()
	if len(summaryData) == 0 {
		summaryStart = 0
	}

	// the summary CRC covers the summary bytes and the serialized footer up
	// to but not including the crc field
	summaryCRC := uint32(0)
	if w.opts.EnableCRCs {
		summaryCRC = crc32.ChecksumIEEE(summaryData)
		var fb wire.RecordBuilder
		fb.WriteU8(byte(mcap.OpFooter))
		fb.WriteU64(8 + 8 + 4)
		fb.WriteU64(summaryStart)
		fb.WriteU64(summaryOffsetStart)
		summaryCRC = crc32.Update(summaryCRC, crc32.IEEETable, fb.End())
	}

	if err := w.writeRaw(summaryData, false); err != nil {
		return err
	}
	footer := &mcap.Footer{SummaryStart: summaryStart, SummaryOffsetStart: summaryOffsetStart, SummaryCRC: summaryCRC}
	footer.Write(&w.rb)
	w.rb.Write(mcap.Magic)
	if err := w.writeRaw(w.rb.End(), false); err != nil {
		return err
	}
	w.state = wsFinished
	w.logger.Debugf("finished, %d bytes, %d messages in %d chunks",
		w.pos, w.stats.MessageCount, w.stats.ChunkCount)
	if w.f != nil {
		return w.f.Close()
	}
	return nil
}

func (w *Writer) checkWriting() error {
	switch w.state {
	case wsInit:
		return fmt.Errorf("the writer is not started yet: %w", errors.ErrInvalid)
	case wsFinished:
		return fmt.Errorf("the writer is finished: %w", errors.ErrClosed)
	}
	return nil
}

// flush moves the record builder content into the output, feeding the
// data-section CRC
func (w *Writer) flush() error {
	return w.writeRaw(w.rb.End(), w.opts.EnableDataCRCs)
}

func (w *Writer) writeRaw(data []byte, updateCRC bool) error {
	if len(data) == 0 {
		return nil
	}
	if updateCRC {
		w.dataCRC = crc32.Update(w.dataCRC, crc32.IEEETable, data)
	}
	n, err := w.w.Write(data)
	w.pos += uint64(n)
	if err != nil {
		return fmt.Errorf("could not write %d bytes: %w", len(data), err)
	}
	return nil
}

func (w *Writer) maybeFinalizeChunk() error {
	if w.chunk != nil && w.chunk.count() > w.opts.ChunkSize {
		return w.finalizeChunk()
	}
	return nil
}

// finalizeChunk compresses and emits the pending chunk, the MessageIndex
// record per producing channel right after it, and queues the ChunkIndex
// for the summary
func (w *Writer) finalizeChunk() error {
	if w.chunk == nil || w.chunk.numMessages == 0 {
		return nil
	}
	w.stats.ChunkCount++

	chunkData := w.chunk.end()
	compressed, err := chunkenc.Compress(w.opts.Compression, chunkData)
	if err != nil {
		return err
	}
	chunk := &mcap.Chunk{
		MessageStartTime: w.chunk.messageStartTime,
		MessageEndTime:   w.chunk.messageEndTime,
		UncompressedSize: uint64(len(chunkData)),
		Compression:      w.opts.Compression,
		Records:          compressed,
	}
	if w.opts.EnableCRCs {
		chunk.UncompressedCRC = crc32.ChecksumIEEE(chunkData)
	}

	chunkStartOffset := w.pos
	chunk.Write(&w.rb)
	chunkLength := w.rb.Count()
	if err = w.flush(); err != nil {
		return err
	}

	chunkIndex := &mcap.ChunkIndex{
		MessageStartTime:    chunk.MessageStartTime,
		MessageEndTime:      chunk.MessageEndTime,
		ChunkStartOffset:    chunkStartOffset,
		ChunkLength:         chunkLength,
		MessageIndexOffsets: map[uint16]uint64{},
		Compression:         chunk.Compression,
		CompressedSize:      uint64(len(compressed)),
		UncompressedSize:    chunk.UncompressedSize,
	}

	messageIndexStart := w.pos
	if w.opts.IndexTypes&IndexMessage != 0 {
		for _, id := range sortedIndexChannels(w.chunk.messageIndices) {
			chunkIndex.MessageIndexOffsets[id] = messageIndexStart + w.rb.Count()
			w.chunk.messageIndices[id].Write(&w.rb)
		}
	}
	chunkIndex.MessageIndexLength = w.rb.Count()
	if err = w.flush(); err != nil {
		return err
	}

	w.chunkIndexes = append(w.chunkIndexes, chunkIndex)
	w.chunk.reset()
	w.logger.Tracef("emitted chunk #%d, %d -> %d bytes", w.stats.ChunkCount, chunk.UncompressedSize, len(compressed))
	return nil
}

// sortedIndexChannels fixes the MessageIndex emission order, so the writes
// are reproducible
func sortedIndexChannels(m map[uint16]*mcap.MessageIndex) []uint16 {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
