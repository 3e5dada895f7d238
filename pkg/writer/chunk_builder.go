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
package writer

import (
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/wire"
)

// chunkBuilder accumulates the Schema, Channel and Message records of the
// chunk being built, together with the per-channel message index entries and
// the time boundaries. The buffer is exclusively owned by the builder until
// the chunk emission releases it.
type chunkBuilder struct {
	rb               wire.RecordBuilder
	messageStartTime uint64
	messageEndTime   uint64
	messageIndices   map[uint16]*mcap.MessageIndex
	numMessages      int
}

func newChunkBuilder() *chunkBuilder {
	return &chunkBuilder{messageIndices: map[uint16]*mcap.MessageIndex{}}
}

// count returns the uncompressed size accumulated so far
func (cb *chunkBuilder) count() uint64 {
	return cb.rb.Count()
}

// end returns the accumulated payload and leaves the builder reusable
func (cb *chunkBuilder) end() []byte {
	return cb.rb.End()
}

func (cb *chunkBuilder) addSchema(s *mcap.Schema) {
	s.Write(&cb.rb)
}

func (cb *chunkBuilder) addChannel(c *mcap.Channel) {
	c.Write(&cb.rb)
}

// addMessage appends the message and extends the chunk time boundaries as
// the min/max over all the messages: the log times are not assumed monotonic
func (cb *chunkBuilder) addMessage(m *mcap.Message) {
	if cb.numMessages == 0 {
		cb.messageStartTime = m.LogTime
	} else if m.LogTime < cb.messageStartTime {
		cb.messageStartTime = m.LogTime
	}
	if m.LogTime > cb.messageEndTime {
		cb.messageEndTime = m.LogTime
	}
	mi := cb.messageIndices[m.ChannelID]
	if mi == nil {
		mi = &mcap.MessageIndex{ChannelID: m.ChannelID}
		cb.messageIndices[m.ChannelID] = mi
	}
	// the entries keep the insertion order, the read-time queue sorts
	mi.Records = append(mi.Records, mcap.MessageIndexEntry{LogTime: m.LogTime, Offset: cb.rb.Count()})
	cb.numMessages++
	m.Write(&cb.rb)
}

func (cb *chunkBuilder) reset() {
	cb.rb.End()
	cb.messageStartTime = 0
	cb.messageEndTime = 0
	cb.messageIndices = map[uint16]*mcap.MessageIndex{}
	cb.numMessages = 0
}
