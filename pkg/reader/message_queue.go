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
	"container/heap"

	"github.com/solarisdb/mcap/pkg/mcap"
)

type (
	// queueItem is the tagged variant held by the merge queue: either a
	// chunk index which has not been expanded yet (msgIndex < 0), or one
	// decoded message with its position inside the expanded chunk
	queueItem struct {
		ci          *mcap.ChunkIndex
		tuple       MessageTuple
		chunkOffset uint64
		msgIndex    int
	}

	// messageQueue merges the chunk indexes and the decoded messages into
	// one time-ordered sequence. The primary key is the log time (the chunk
	// start time for the unexpanded chunks, the end time when reversed), the
	// tie-break is the position in the file. With timeOrder off the queue degrades to a plain FIFO.
	messageQueue struct {
		items     []queueItem
		timeOrder bool
		reverse   bool
	}
)

func newMessageQueue(timeOrder, reverse bool) *messageQueue {
	return &messageQueue{timeOrder: timeOrder, reverse: reverse}
}

// key returns the ordering key of the item for the queue direction
func (q *messageQueue) key(it *queueItem) uint64 {
	if it.msgIndex >= 0 {
		return it.tuple.Message.LogTime
	}
	if q.reverse {
		return it.ci.MessageEndTime
	}
	return it.ci.MessageStartTime
}

// position returns the file-position tie-break of the item
func (q *messageQueue) position(it *queueItem) uint64 {
	if it.msgIndex >= 0 {
		return it.chunkOffset
	}
	if q.reverse {
		return it.ci.ChunkStartOffset + it.ci.ChunkLength
	}
	return it.ci.ChunkStartOffset
}

func (q *messageQueue) less(a, b uint64) bool {
	if q.reverse {
		return a > b
	}
	return a < b
}

// Len implements heap.Interface
func (q *messageQueue) Len() int { return len(q.items) }

// Less implements heap.Interface
func (q *messageQueue) Less(i, j int) bool {
	a, b := &q.items[i], &q.items[j]
	ka, kb := q.key(a), q.key(b)
	if ka != kb {
		return q.less(ka, kb)
	}
	pa, pb := q.position(a), q.position(b)
	if pa != pb || a.msgIndex < 0 || b.msgIndex < 0 {
		return q.less(pa, pb)
	}
	// two messages of the same chunk
	if q.reverse {
		return a.msgIndex > b.msgIndex
	}
	return a.msgIndex < b.msgIndex
}

// Swap implements heap.Interface
func (q *messageQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

// Push implements heap.Interface
func (q *messageQueue) Push(x any) {
	q.items = append(q.items, x.(queueItem))
}

// Pop implements heap.Interface
func (q *messageQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// pushChunkIndex adds an unexpanded chunk index to the queue
func (q *messageQueue) pushChunkIndex(ci *mcap.ChunkIndex) {
	q.push(queueItem{ci: ci, msgIndex: -1})
}

// pushMessage adds a decoded message with its position to the queue
func (q *messageQueue) pushMessage(t MessageTuple, chunkOffset uint64, msgIndex int) {
	q.push(queueItem{tuple: t, chunkOffset: chunkOffset, msgIndex: msgIndex})
}

func (q *messageQueue) push(it queueItem) {
	if q.timeOrder {
		heap.Push(q, it)
	} else {
		q.items = append(q.items, it)
	}
}

// pop removes and returns the lowest-keyed item (the first inserted one
// when the queue works as a FIFO)
func (q *messageQueue) pop() queueItem {
	if q.timeOrder {
		return heap.Pop(q).(queueItem)
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it
}

func (q *messageQueue) empty() bool {
	return len(q.items) == 0
}
