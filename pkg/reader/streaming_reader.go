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
	"sort"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/golibs/logging"
	"github.com/solarisdb/mcap/pkg/mcap"
)

// StreamingReader reads out of the sources which cannot seek, such as a pipe
// or a socket. The source is consumed while reading, so only one query may
// be issued against a StreamingReader instance.
type StreamingReader struct {
	r      io.Reader
	opts   Options
	spent  bool
	logger logging.Logger
}

var _ Reader = (*StreamingReader)(nil)

// NewStreamingReader returns the Reader over the non-seekable source r
func NewStreamingReader(r io.Reader, opts Options) *StreamingReader {
	return &StreamingReader{r: r, opts: opts, logger: logging.NewLogger("mcap.StreamingReader")}
}

func (nr *StreamingReader) checkSpent() error {
	if nr.spent {
		return fmt.Errorf("cannot use more than one query against a non-seeking data source: %w", errors.ErrClosed)
	}
	nr.spent = true
	return nil
}

func (nr *StreamingReader) streamReader(so StreamOptions) *StreamReader {
	so.ValidateCRCs = nr.opts.ValidateCRCs
	so.RecordSizeLimit = nr.opts.RecordSizeLimit
	return NewStreamReader(nr.r, so)
}

// Records implements Reader
func (nr *StreamingReader) Records() (RecordIterator, error) {
	if err := nr.checkSpent(); err != nil {
		return nil, err
	}
	return nr.streamReader(StreamOptions{}), nil
}

// GetHeader implements Reader
func (nr *StreamingReader) GetHeader() (*mcap.Header, error) {
	if err := nr.checkSpent(); err != nil {
		return nil, err
	}
	return readHeaderRecord(nr.streamReader(StreamOptions{}))
}

// GetSummary implements Reader. The whole source is consumed to reach the
// summary section.
func (nr *StreamingReader) GetSummary() (*mcap.Summary, error) {
	if err := nr.checkSpent(); err != nil {
		return nil, err
	}
	return collectSummary(nr.streamReader(StreamOptions{}))
}

// IterMessages implements Reader.
//
// NOTE: requesting LogTimeOrder against a non-seeking source loads every
// selected message into the memory for sorting.
func (nr *StreamingReader) IterMessages(opts IterOptions) (MessageIterator, error) {
	if err := checkIterOptions(opts); err != nil {
		return nil, err
	}
	if err := nr.checkSpent(); err != nil {
		return nil, err
	}
	it := newStreamMessageIterator(nr.streamReader(StreamOptions{}), opts)
	if !opts.LogTimeOrder {
		return it, nil
	}
	return sortMessages(it, opts.Reverse)
}

// IterDecodedMessages implements Reader
func (nr *StreamingReader) IterDecodedMessages(opts IterOptions) (DecodedMessageIterator, error) {
	it, err := nr.IterMessages(opts)
	if err != nil {
		return nil, err
	}
	return newDecodedIterator(it, nr.opts.DecoderFactories), nil
}

// IterAttachments implements Reader
func (nr *StreamingReader) IterAttachments() (AttachmentIterator, error) {
	if err := nr.checkSpent(); err != nil {
		return nil, err
	}
	return &recordFilterIterator[*mcap.Attachment]{sr: nr.streamReader(StreamOptions{})}, nil
}

// IterMetadata implements Reader
func (nr *StreamingReader) IterMetadata() (MetadataIterator, error) {
	if err := nr.checkSpent(); err != nil {
		return nil, err
	}
	return &recordFilterIterator[*mcap.Metadata]{sr: nr.streamReader(StreamOptions{})}, nil
}

func checkIterOptions(opts IterOptions) error {
	if opts.Reverse && !opts.LogTimeOrder {
		return fmt.Errorf("reverse iteration requires the log-time order: %w", errors.ErrInvalid)
	}
	return nil
}

func readHeaderRecord(sr *StreamReader) (*mcap.Header, error) {
	rec, ok := sr.Next()
	if !ok {
		if err := sr.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("the stream contains no records: %w", errors.ErrInvalid)
	}
	hdr, ok := rec.(*mcap.Header)
	if !ok {
		return nil, fmt.Errorf("expected header at the beginning of the stream, found %s: %w",
			rec.Op(), errors.ErrInvalid)
	}
	return hdr, nil
}

// collectSummary walks the records to the footer and gathers the summary
// groups. It returns nil when the footer reports no summary section.
func collectSummary(sr *StreamReader) (*mcap.Summary, error) {
	summary := mcap.NewSummary()
	for {
		rec, ok := sr.Next()
		if !ok {
			if err := sr.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("the stream ended before a footer record: %w", errors.ErrInvalid)
		}
		if f, isFooter := rec.(*mcap.Footer); isFooter {
			if f.SummaryStart == 0 {
				return nil, nil
			}
			return summary, nil
		}
		summary.Collect(rec)
	}
}

// sortMessages drains the iterator and returns the stable-sorted sequence
func sortMessages(it MessageIterator, reverse bool) (MessageIterator, error) {
	var els []MessageTuple
	for it.HasNext() {
		t, _ := it.Next()
		els = append(els, t)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(els, func(i, j int) bool {
		return els[i].Message.LogTime < els[j].Message.LogTime
	})
	if reverse {
		// the exact mirror of the forward order, equal log times included
		for i, j := 0, len(els)-1; i < j; i, j = i+1, j-1 {
			els[i], els[j] = els[j], els[i]
		}
	}
	return &sliceMessageIterator{els: els}, nil
}

type sliceMessageIterator struct {
	els []MessageTuple
	idx int
}

func (si *sliceMessageIterator) HasNext() bool {
	return si.idx < len(si.els)
}

func (si *sliceMessageIterator) Next() (MessageTuple, bool) {
	if si.idx >= len(si.els) {
		return MessageTuple{}, false
	}
	t := si.els[si.idx]
	si.idx++
	return t, true
}

func (si *sliceMessageIterator) Err() error { return nil }

func (si *sliceMessageIterator) Close() error {
	si.els = nil
	return nil
}

// streamMessageIterator walks the record stream forward, tracking the
// schema and channel dictionary, and yields the matching messages
type streamMessageIterator struct {
	sr       *StreamReader
	opts     IterOptions
	topics   map[string]bool
	schemas  map[uint16]*mcap.Schema
	channels map[uint16]*mcap.Channel
	next     *MessageTuple
	err      error
}

var _ MessageIterator = (*streamMessageIterator)(nil)

func newStreamMessageIterator(sr *StreamReader, opts IterOptions) *streamMessageIterator {
	return &streamMessageIterator{
		sr:       sr,
		opts:     opts,
		topics:   opts.topicSet(),
		schemas:  map[uint16]*mcap.Schema{},
		channels: map[uint16]*mcap.Channel{},
	}
}

func (it *streamMessageIterator) HasNext() bool {
	if it.next != nil {
		return true
	}
	if it.err != nil {
		return false
	}
	for {
		rec, ok := it.sr.Next()
		if !ok {
			it.err = it.sr.Err()
			return false
		}
		switch r := rec.(type) {
		case *mcap.Schema:
			it.schemas[r.ID] = r
		case *mcap.Channel:
			if r.SchemaID != 0 {
				if _, ok := it.schemas[r.SchemaID]; !ok {
					it.err = fmt.Errorf("no schema record found with id %d: %w", r.SchemaID, errors.ErrInvalid)
					return false
				}
			}
			it.channels[r.ID] = r
		case *mcap.Message:
			ch, ok := it.channels[r.ChannelID]
			if !ok {
				it.err = fmt.Errorf("no channel record found with id %d: %w", r.ChannelID, errors.ErrInvalid)
				return false
			}
			if it.topics != nil && !it.topics[ch.Topic] {
				continue
			}
			if !it.opts.inRange(r.LogTime) {
				continue
			}
			it.next = &MessageTuple{Schema: it.schemas[ch.SchemaID], Channel: ch, Message: r}
			return true
		}
	}
}

func (it *streamMessageIterator) Next() (MessageTuple, bool) {
	if !it.HasNext() {
		return MessageTuple{}, false
	}
	t := *it.next
	it.next = nil
	return t, true
}

func (it *streamMessageIterator) Err() error { return it.err }

func (it *streamMessageIterator) Close() error {
	return it.sr.Close()
}

// recordFilterIterator yields the records of the type V only
type recordFilterIterator[V mcap.Record] struct {
	sr   *StreamReader
	next mcap.Record
	err  error
}

func (it *recordFilterIterator[V]) HasNext() bool {
	if it.next != nil {
		return true
	}
	if it.err != nil {
		return false
	}
	for {
		rec, ok := it.sr.Next()
		if !ok {
			it.err = it.sr.Err()
			return false
		}
		if _, matches := rec.(V); matches {
			it.next = rec
			return true
		}
	}
}

func (it *recordFilterIterator[V]) Next() (V, bool) {
	var zero V
	if !it.HasNext() {
		return zero, false
	}
	rec := it.next.(V)
	it.next = nil
	return rec, true
}

func (it *recordFilterIterator[V]) Err() error { return it.err }

func (it *recordFilterIterator[V]) Close() error {
	return it.sr.Close()
}
