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

// Package reader provides the two reader families over MCAP byte sources:
// the forward-only StreamingReader for the sources which cannot seek, and
// the SeekingReader which uses the summary section to pull only the chunks
// it needs. Both produce the identical observable message sequences.
package reader

import (
	"io"

	"github.com/solarisdb/mcap/golibs/container/iterable"
	"github.com/solarisdb/mcap/pkg/mcap"
)

type (
	// MessageTuple is one message together with its channel and the schema
	// of the channel. Schema is nil for the schemaless channels.
	MessageTuple struct {
		Schema  *mcap.Schema
		Channel *mcap.Channel
		Message *mcap.Message
	}

	// IterOptions select and order the messages returned by IterMessages
	IterOptions struct {
		// Topics keeps the messages of the listed topics only; nil keeps all
		Topics []string
		// StartTime drops the messages logged before the timestamp (inclusive)
		StartTime uint64
		// EndTime drops the messages logged at or after the timestamp
		// (exclusive). 0 means no upper boundary.
		EndTime uint64
		// LogTimeOrder yields the messages in the ascending log-time order;
		// if false the messages come in the order they appear in the file
		LogTimeOrder bool
		// Reverse flips the log-time order to descending. It requires
		// LogTimeOrder to be true.
		Reverse bool
	}

	// Options configure a reader over a byte source
	Options struct {
		// ValidateCRCs verifies the chunk and data-section checksums while reading
		ValidateCRCs bool
		// RecordSizeLimit caps the declared size of a single record;
		// 0 means DefaultRecordSizeLimit
		RecordSizeLimit uint64
		// DecoderFactories resolve the message payload decoders for
		// IterDecodedMessages. The first factory which returns a non-nil
		// decoder for a channel wins.
		DecoderFactories []DecoderFactory
	}

	// MessageIterator is the lazy sequence of the selected messages. After
	// the iterator is exhausted Err() tells whether it hit a problem.
	MessageIterator interface {
		iterable.Iterator[MessageTuple]
		iterable.ErrReporter
	}

	// AttachmentIterator is the lazy sequence of the attachment records
	AttachmentIterator interface {
		iterable.Iterator[*mcap.Attachment]
		iterable.ErrReporter
	}

	// MetadataIterator is the lazy sequence of the metadata records
	MetadataIterator interface {
		iterable.Iterator[*mcap.Metadata]
		iterable.ErrReporter
	}

	// RecordIterator is the lazy sequence of all the decoded records
	RecordIterator interface {
		iterable.Iterator[mcap.Record]
		iterable.ErrReporter
	}

	// Reader is the common surface of the both reader families
	Reader interface {
		// Records returns the lazy sequence of all the records of the source
		Records() (RecordIterator, error)
		// IterMessages returns the selected messages
		IterMessages(opts IterOptions) (MessageIterator, error)
		// IterDecodedMessages returns the selected messages with their
		// payloads decoded by the configured decoder factories
		IterDecodedMessages(opts IterOptions) (DecodedMessageIterator, error)
		// GetHeader returns the Header record of the source
		GetHeader() (*mcap.Header, error)
		// GetSummary returns the summary section rollup, or nil if the
		// source has no summary
		GetSummary() (*mcap.Summary, error)
		// IterAttachments returns the attachment records of the source
		IterAttachments() (AttachmentIterator, error)
		// IterMetadata returns the metadata records of the source
		IterMetadata() (MetadataIterator, error)
	}
)

// GetDefaultIterOptions returns the options which select every message in
// the ascending log-time order
func GetDefaultIterOptions() IterOptions {
	return IterOptions{LogTimeOrder: true}
}

// MakeReader constructs the appropriate Reader implementation for the byte
// source: the seeking one when the source can seek, the streaming one
// otherwise.
func MakeReader(r io.Reader, opts Options) Reader {
	if rs, ok := r.(io.ReadSeeker); ok {
		return NewSeekingReader(rs, opts)
	}
	return NewStreamingReader(r, opts)
}

// inRange tells whether the log time passes the [StartTime, EndTime) filter
func (o IterOptions) inRange(logTime uint64) bool {
	if logTime < o.StartTime {
		return false
	}
	if o.EndTime != 0 && logTime >= o.EndTime {
		return false
	}
	return true
}

// topicSet builds the lookup set of the topic filter, nil for no filter
func (o IterOptions) topicSet() map[string]bool {
	if o.Topics == nil {
		return nil
	}
	set := make(map[string]bool, len(o.Topics))
	for _, t := range o.Topics {
		set[t] = true
	}
	return set
}
