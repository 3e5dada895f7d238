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

	"github.com/solarisdb/mcap/golibs/container/iterable"
	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/pkg/mcap"
)

type (
	// DecodeFunc turns the opaque message payload into a value
	DecodeFunc func(data []byte) (any, error)

	// DecoderFactory provides the payload decoding to the readers. A factory
	// is asked whether it can handle the message encoding and the schema of
	// a channel; nil means the factory does not apply, and the next one is
	// consulted. The reader caches the resolved decoder per channel.
	DecoderFactory interface {
		// DecoderFor returns the decoder for the pair, or nil when the
		// factory cannot handle it
		DecoderFor(messageEncoding string, schema *mcap.Schema) DecodeFunc
	}

	// DecodedMessage is a MessageTuple with the payload decoded
	DecodedMessage struct {
		MessageTuple
		// Value is the result of the channel decoder over Message.Data
		Value any
	}

	// DecodedMessageIterator is the lazy sequence of the decoded messages
	DecodedMessageIterator interface {
		iterable.Iterator[DecodedMessage]
		iterable.ErrReporter
	}

	decodedIterator struct {
		inner     MessageIterator
		factories []DecoderFactory
		decoders  map[uint16]DecodeFunc
		next      *DecodedMessage
		err       error
	}
)

// ErrDecoderNotFound is reported when no configured decoder factory accepts
// the message encoding and the schema of a channel
var ErrDecoderNotFound = fmt.Errorf("no decoder factory found: %w", errors.ErrNotExist)

var _ DecodedMessageIterator = (*decodedIterator)(nil)

func newDecodedIterator(inner MessageIterator, factories []DecoderFactory) *decodedIterator {
	return &decodedIterator{inner: inner, factories: factories, decoders: map[uint16]DecodeFunc{}}
}

func (it *decodedIterator) HasNext() bool {
	if it.next != nil {
		return true
	}
	if it.err != nil {
		return false
	}
	t, ok := it.inner.Next()
	if !ok {
		it.err = it.inner.Err()
		return false
	}
	decode, err := it.decoderFor(t)
	if err != nil {
		it.err = err
		return false
	}
	value, err := decode(t.Message.Data)
	if err != nil {
		it.err = fmt.Errorf("could not decode the message of the topic %s: %w", t.Channel.Topic, err)
		return false
	}
	it.next = &DecodedMessage{MessageTuple: t, Value: value}
	return true
}

func (it *decodedIterator) Next() (DecodedMessage, bool) {
	if !it.HasNext() {
		return DecodedMessage{}, false
	}
	dm := *it.next
	it.next = nil
	return dm, true
}

func (it *decodedIterator) Err() error { return it.err }

func (it *decodedIterator) Close() error {
	return it.inner.Close()
}

// decoderFor resolves the decoder of the message channel, the first factory
// which returns a non-nil decoder wins. The result is cached by the channel id.
func (it *decodedIterator) decoderFor(t MessageTuple) (DecodeFunc, error) {
	if decode, ok := it.decoders[t.Channel.ID]; ok {
		return decode, nil
	}
	for _, f := range it.factories {
		if decode := f.DecoderFor(t.Channel.MessageEncoding, t.Schema); decode != nil {
			it.decoders[t.Channel.ID] = decode
			return decode, nil
		}
	}
	return nil, fmt.Errorf("no decoder for the topic %s with the message encoding %q: %w",
		t.Channel.Topic, t.Channel.MessageEncoding, ErrDecoderNotFound)
}
