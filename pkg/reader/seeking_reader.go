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
	"fmt"
	"io"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/golibs/logging"
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/wire"
)

// SeekingReader reads out of the seekable sources. It locates the summary
// section via the footer and pulls only the chunks overlapping the query,
// merging their messages through the priority queue. A source without a
// summary is transparently read by the streaming path.
type SeekingReader struct {
	rs     io.ReadSeeker
	opts   Options
	logger logging.Logger

	summary       *mcap.Summary
	summaryLoaded bool
}

var _ Reader = (*SeekingReader)(nil)

// NewSeekingReader returns the Reader over the seekable source rs
func NewSeekingReader(rs io.ReadSeeker, opts Options) *SeekingReader {
	return &SeekingReader{rs: rs, opts: opts, logger: logging.NewLogger("mcap.SeekingReader")}
}

func (r *SeekingReader) streamReaderAt(offset int64, so StreamOptions) (*StreamReader, error) {
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	so.RecordSizeLimit = r.opts.RecordSizeLimit
	return NewStreamReader(r.rs, so), nil
}

// Records implements Reader
func (r *SeekingReader) Records() (RecordIterator, error) {
	return r.streamReaderAt(0, StreamOptions{ValidateCRCs: r.opts.ValidateCRCs})
}

// GetHeader implements Reader
func (r *SeekingReader) GetHeader() (*mcap.Header, error) {
	sr, err := r.streamReaderAt(0, StreamOptions{})
	if err != nil {
		return nil, err
	}
	return readHeaderRecord(sr)
}

// GetSummary implements Reader. The summary is read once and cached for
// the reader lifetime. A source without a summary section yields nil.
func (r *SeekingReader) GetSummary() (*mcap.Summary, error) {
	if r.summaryLoaded {
		return r.summary, nil
	}
	end, err := r.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if end < int64(mcap.FooterLength+mcap.MagicSize) {
		return nil, fmt.Errorf("the source of %d bytes is too short for a footer: %w", end, errors.ErrInvalid)
	}
	sr, err := r.streamReaderAt(end-int64(mcap.FooterLength+mcap.MagicSize), StreamOptions{SkipMagic: true})
	if err != nil {
		return nil, err
	}
	rec, ok := sr.Next()
	if !ok {
		if err = sr.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no footer record at the end of the source: %w", errors.ErrInvalid)
	}
	footer, ok := rec.(*mcap.Footer)
	if !ok {
		return nil, fmt.Errorf("expected footer at the end of the source, found %s: %w", rec.Op(), errors.ErrInvalid)
	}
	if footer.SummaryStart == 0 {
		r.summaryLoaded = true
		return nil, nil
	}
	sr, err = r.streamReaderAt(int64(footer.SummaryStart), StreamOptions{SkipMagic: true})
	if err != nil {
		return nil, err
	}
	summary, err := collectSummary(sr)
	if err != nil {
		return nil, err
	}
	r.summary = summary
	r.summaryLoaded = true
	return summary, nil
}

// IterMessages implements Reader
func (r *SeekingReader) IterMessages(opts IterOptions) (MessageIterator, error) {
	if err := checkIterOptions(opts); err != nil {
		return nil, err
	}
	summary, err := r.GetSummary()
	if err != nil {
		return nil, err
	}
	if summary == nil || len(summary.ChunkIndexes) == 0 {
		// no chunk index to search for the messages, scan the source linearly
		sr, err := r.streamReaderAt(0, StreamOptions{ValidateCRCs: r.opts.ValidateCRCs})
		if err != nil {
			return nil, err
		}
		it := newStreamMessageIterator(sr, opts)
		if !opts.LogTimeOrder {
			return it, nil
		}
		return sortMessages(it, opts.Reverse)
	}
	q := newMessageQueue(opts.LogTimeOrder, opts.Reverse)
	for _, ci := range chunksMatching(summary, opts) {
		q.pushChunkIndex(ci)
	}
	return &seekMessageIterator{
		rs:         r.rs,
		opts:       opts,
		readerOpts: r.opts,
		summary:    summary,
		topics:     opts.topicSet(),
		q:          q,
	}, nil
}

// IterDecodedMessages implements Reader
func (r *SeekingReader) IterDecodedMessages(opts IterOptions) (DecodedMessageIterator, error) {
	it, err := r.IterMessages(opts)
	if err != nil {
		return nil, err
	}
	return newDecodedIterator(it, r.opts.DecoderFactories), nil
}

// IterAttachments implements Reader
func (r *SeekingReader) IterAttachments() (AttachmentIterator, error) {
	summary, err := r.GetSummary()
	if err != nil {
		return nil, err
	}
	if summary == nil || len(summary.AttachmentIndexes) == 0 {
		sr, serr := r.streamReaderAt(0, StreamOptions{})
		if serr != nil {
			return nil, serr
		}
		return &recordFilterIterator[*mcap.Attachment]{sr: sr}, nil
	}
	return &indexedRecordIterator[*mcap.Attachment]{
		rs:      r.rs,
		limit:   r.opts.RecordSizeLimit,
		offsets: attachmentOffsets(summary.AttachmentIndexes),
	}, nil
}

// IterMetadata implements Reader
func (r *SeekingReader) IterMetadata() (MetadataIterator, error) {
	summary, err := r.GetSummary()
	if err != nil {
		return nil, err
	}
	if summary == nil || len(summary.MetadataIndexes) == 0 {
		sr, serr := r.streamReaderAt(0, StreamOptions{})
		if serr != nil {
			return nil, serr
		}
		return &recordFilterIterator[*mcap.Metadata]{sr: sr}, nil
	}
	return &indexedRecordIterator[*mcap.Metadata]{
		rs:      r.rs,
		limit:   r.opts.RecordSizeLimit,
		offsets: metadataOffsets(summary.MetadataIndexes),
	}, nil
}

// chunksMatching selects the chunk indexes which overlap the time range and
// carry at least one channel of the topic filter; with no topic filter every
// chunk overlapping the time range is selected
func chunksMatching(summary *mcap.Summary, opts IterOptions) []*mcap.ChunkIndex {
	topics := opts.topicSet()
	var out []*mcap.ChunkIndex
	for _, ci := range summary.ChunkIndexes {
		if ci.MessageEndTime < opts.StartTime {
			continue
		}
		if opts.EndTime != 0 && ci.MessageStartTime >= opts.EndTime {
			continue
		}
		if topics == nil {
			out = append(out, ci)
			continue
		}
		for id := range ci.MessageIndexOffsets {
			ch, ok := summary.Channels[id]
			if !ok {
				continue
			}
			if topics == nil || topics[ch.Topic] {
				out = append(out, ci)
				break
			}
		}
	}
	return out
}

// seekMessageIterator pops the lowest-keyed item off the queue: a chunk
// index is expanded into its matching messages which go back to the queue,
// a message is yielded
type seekMessageIterator struct {
	rs         io.ReadSeeker
	opts       IterOptions
	readerOpts Options
	summary    *mcap.Summary
	topics     map[string]bool
	q          *messageQueue
	next       *MessageTuple
	err        error
}

var _ MessageIterator = (*seekMessageIterator)(nil)

func (it *seekMessageIterator) HasNext() bool {
	if it.next != nil {
		return true
	}
	if it.err != nil {
		return false
	}
	for !it.q.empty() {
		item := it.q.pop()
		if item.msgIndex < 0 {
			if err := it.expandChunk(item.ci); err != nil {
				it.err = err
				return false
			}
			continue
		}
		it.next = &item.tuple
		return true
	}
	return false
}

func (it *seekMessageIterator) Next() (MessageTuple, bool) {
	if !it.HasNext() {
		return MessageTuple{}, false
	}
	t := *it.next
	it.next = nil
	return t, true
}

func (it *seekMessageIterator) Err() error { return it.err }

func (it *seekMessageIterator) Close() error {
	it.q = newMessageQueue(it.opts.LogTimeOrder, it.opts.Reverse)
	it.next = nil
	return nil
}

// expandChunk reads the chunk the index points at and pushes its matching
// messages back onto the queue keyed by the log time
func (it *seekMessageIterator) expandChunk(ci *mcap.ChunkIndex) error {
	if _, err := it.rs.Seek(int64(ci.ChunkStartOffset+wire.FrameSize), io.SeekStart); err != nil {
		return err
	}
	s := wire.NewReadStream(it.rs, false)
	rec, err := mcap.ReadRecord(s, mcap.OpChunk, 0)
	if err != nil {
		return err
	}
	chunk, ok := rec.(*mcap.Chunk)
	if !ok {
		return fmt.Errorf("no chunk record at the offset %d: %w", ci.ChunkStartOffset, errors.ErrDataLoss)
	}
	recs, err := BreakupChunk(chunk, it.readerOpts.ValidateCRCs)
	if err != nil {
		return err
	}
	for i, rec := range recs {
		msg, ok := rec.(*mcap.Message)
		if !ok {
			continue
		}
		ch, ok := it.summary.Channels[msg.ChannelID]
		if !ok {
			return fmt.Errorf("no channel record found with id %d: %w", msg.ChannelID, errors.ErrInvalid)
		}
		if it.topics != nil && !it.topics[ch.Topic] {
			continue
		}
		if !it.opts.inRange(msg.LogTime) {
			continue
		}
		var schema *mcap.Schema
		if ch.SchemaID != 0 {
			if schema, ok = it.summary.Schemas[ch.SchemaID]; !ok {
				return fmt.Errorf("no schema record found with id %d: %w", ch.SchemaID, errors.ErrInvalid)
			}
		}
		it.q.pushMessage(MessageTuple{Schema: schema, Channel: ch, Message: msg}, ci.ChunkStartOffset, i)
	}
	return nil
}

// indexedRecordIterator reads the records of the type V by their summary
// index offsets, pulling only the needed file regions
type indexedRecordIterator[V mcap.Record] struct {
	rs      io.ReadSeeker
	limit   uint64
	offsets []uint64
	idx     int
	err     error
}

func (it *indexedRecordIterator[V]) HasNext() bool {
	return it.err == nil && it.idx < len(it.offsets)
}

func (it *indexedRecordIterator[V]) Next() (V, bool) {
	var zero V
	if !it.HasNext() {
		return zero, false
	}
	offset := it.offsets[it.idx]
	it.idx++
	rec, err := readRecordAt(it.rs, offset, it.limit)
	if err != nil {
		it.err = err
		return zero, false
	}
	v, ok := rec.(V)
	if !ok {
		it.err = fmt.Errorf("unexpected record at the indexed offset %d: %w", offset, errors.ErrDataLoss)
		return zero, false
	}
	return v, true
}

func (it *indexedRecordIterator[V]) Err() error { return it.err }

func (it *indexedRecordIterator[V]) Close() error {
	it.offsets = nil
	return nil
}

// readRecordAt decodes the single record framed at the file offset
func readRecordAt(rs io.ReadSeeker, offset uint64, limit uint64) (mcap.Record, error) {
	if _, err := rs.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultRecordSizeLimit
	}
	s := wire.NewReadStream(rs, false)
	op, err := s.ReadU8()
	if err != nil {
		return nil, err
	}
	length, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	if length > limit {
		return nil, &mcap.RecordLengthError{Op: mcap.Opcode(op), Length: length, Limit: limit}
	}
	return mcap.ReadRecord(s, mcap.Opcode(op), length)
}

func attachmentOffsets(ais []*mcap.AttachmentIndex) []uint64 {
	offs := make([]uint64, len(ais))
	for i, ai := range ais {
		offs[i] = ai.Offset
	}
	return offs
}

func metadataOffsets(mis []*mcap.MetadataIndex) []uint64 {
	offs := make([]uint64, len(mis))
	for i, mi := range mis {
		offs[i] = mi.Offset
	}
	return offs
}
