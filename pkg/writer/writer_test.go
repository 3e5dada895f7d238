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
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/reader"
	"github.com/stretchr/testify/assert"
)

func TestWriter_StateMachine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, GetDefaultOptions())

	_, err := w.RegisterSchema("S", "jsonschema", []byte("{}"))
	assert.True(t, errors.Is(err, errors.ErrInvalid))
	assert.True(t, errors.Is(w.AddMessage(1, 0, 0, 0, nil), errors.ErrInvalid))
	assert.True(t, errors.Is(w.Finish(), errors.ErrInvalid))

	assert.Nil(t, w.Start("", "test"))
	assert.True(t, errors.Is(w.Start("", "test"), errors.ErrInvalid))

	assert.Nil(t, w.Finish())
	// Finish is terminal, the repeated calls are no-ops
	assert.Nil(t, w.Finish())
	_, err = w.RegisterSchema("S", "jsonschema", []byte("{}"))
	assert.True(t, errors.Is(err, errors.ErrClosed))
}

func TestWriter_UnknownReferences(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, GetDefaultOptions())
	assert.Nil(t, w.Start("", "test"))

	_, err := w.RegisterChannel("/a", "json", 5, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalid))
	assert.True(t, errors.Is(w.AddMessage(9, 0, 0, 0, nil), errors.ErrInvalid))
	assert.Nil(t, w.Finish())
}

func TestWriter_BadCompression(t *testing.T) {
	opts := GetDefaultOptions()
	opts.Compression = "snappy"
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	assert.True(t, errors.Is(w.Start("", "test"), errors.ErrInvalid))
}

func TestWriter_Unchunked(t *testing.T) {
	opts := GetDefaultOptions()
	opts.UseChunking = false
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	assert.Nil(t, w.Start("", "test"))
	sid, err := w.RegisterSchema("S", "jsonschema", []byte("{}"))
	assert.Nil(t, err)
	cid, err := w.RegisterChannel("/a", "json", sid, nil)
	assert.Nil(t, err)
	assert.Nil(t, w.AddMessage(cid, 5, 5, 0, []byte("plain")))
	assert.Nil(t, w.Finish())

	sr := reader.NewStreamReader(bytes.NewReader(buf.Bytes()), reader.StreamOptions{EmitChunks: true})
	chunks, messages := 0, 0
	var stats *mcap.Statistics
	for sr.HasNext() {
		rec, _ := sr.Next()
		switch r := rec.(type) {
		case *mcap.Chunk:
			chunks++
		case *mcap.Message:
			messages++
		case *mcap.Statistics:
			stats = r
		}
	}
	assert.Nil(t, sr.Err())
	assert.Equal(t, 0, chunks)
	assert.Equal(t, 1, messages)
	assert.NotNil(t, stats)
	assert.Equal(t, uint32(0), stats.ChunkCount)
}

func TestWriter_CompressionRoundTrips(t *testing.T) {
	for _, compression := range []string{mcap.CompressionNone, mcap.CompressionLZ4, mcap.CompressionZstd} {
		opts := GetDefaultOptions()
		opts.Compression = compression
		var buf bytes.Buffer
		w := NewWriter(&buf, opts)
		assert.Nil(t, w.Start("", "test"))
		sid, _ := w.RegisterSchema("S", "jsonschema", []byte("{}"))
		cid, _ := w.RegisterChannel("/a", "json", sid, nil)
		payload := bytes.Repeat([]byte("data"), 100)
		assert.Nil(t, w.AddMessage(cid, 1, 1, 0, payload))
		assert.Nil(t, w.Finish())

		r := reader.NewSeekingReader(bytes.NewReader(buf.Bytes()), reader.Options{ValidateCRCs: true})
		it, err := r.IterMessages(reader.GetDefaultIterOptions())
		assert.Nil(t, err, compression)
		assert.True(t, it.HasNext(), compression)
		mt, _ := it.Next()
		assert.Equal(t, payload, mt.Message.Data, compression)
		assert.Nil(t, it.Err(), compression)
	}
}

// TestWriter_IndexSoundness checks that every ChunkIndex lands on a Chunk
// opcode and every message index offset lands on a MessageIndex record of
// the right channel
func TestWriter_IndexSoundness(t *testing.T) {
	opts := GetDefaultOptions()
	opts.ChunkSize = 64
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	assert.Nil(t, w.Start("", "test"))
	sid, _ := w.RegisterSchema("S", "jsonschema", []byte("{}"))
	a, _ := w.RegisterChannel("/a", "json", sid, nil)
	b, _ := w.RegisterChannel("/b", "json", sid, nil)
	for i := 0; i < 20; i++ {
		ch := a
		if i%3 == 0 {
			ch = b
		}
		assert.Nil(t, w.AddMessage(ch, uint64(i), uint64(i), uint32(i), bytes.Repeat([]byte("p"), 32)))
	}
	assert.Nil(t, w.Finish())
	data := buf.Bytes()

	r := reader.NewSeekingReader(bytes.NewReader(data), reader.Options{})
	summary, err := r.GetSummary()
	assert.Nil(t, err)
	assert.Greater(t, len(summary.ChunkIndexes), 1)
	for _, ci := range summary.ChunkIndexes {
		assert.Equal(t, byte(mcap.OpChunk), data[ci.ChunkStartOffset])
		for id, off := range ci.MessageIndexOffsets {
			assert.Equal(t, byte(mcap.OpMessageIndex), data[off])
			// the channel id follows the opcode and the u64 length
			assert.Equal(t, id, uint16(data[off+9])|uint16(data[off+10])<<8)
		}
	}

	// every message of a chunk stays within its declared time boundaries
	sr := reader.NewStreamReader(bytes.NewReader(data), reader.StreamOptions{EmitChunks: true})
	for sr.HasNext() {
		rec, _ := sr.Next()
		chunk, ok := rec.(*mcap.Chunk)
		if !ok {
			continue
		}
		inner, err := reader.BreakupChunk(chunk, true)
		assert.Nil(t, err)
		for _, irec := range inner {
			if msg, ok := irec.(*mcap.Message); ok {
				assert.LessOrEqual(t, chunk.MessageStartTime, msg.LogTime)
				assert.LessOrEqual(t, msg.LogTime, chunk.MessageEndTime)
			}
		}
	}
	assert.Nil(t, sr.Err())
}

// TestWriter_StatisticsClosure checks that the per-channel counts add up to
// the total and the time boundaries span all the log times
func TestWriter_StatisticsClosure(t *testing.T) {
	opts := GetDefaultOptions()
	opts.ChunkSize = 100
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	assert.Nil(t, w.Start("", "test"))
	sid, _ := w.RegisterSchema("S", "jsonschema", []byte("{}"))
	a, _ := w.RegisterChannel("/a", "json", sid, nil)
	b, _ := w.RegisterChannel("/b", "json", sid, nil)
	times := []uint64{42, 3, 17, 3, 99, 1}
	for i, lt := range times {
		ch := a
		if i%2 == 1 {
			ch = b
		}
		assert.Nil(t, w.AddMessage(ch, lt, lt, 0, []byte("x")))
	}
	assert.Nil(t, w.Finish())

	r := reader.NewSeekingReader(bytes.NewReader(buf.Bytes()), reader.Options{})
	summary, err := r.GetSummary()
	assert.Nil(t, err)
	st := summary.Statistics
	var sum uint64
	for _, c := range st.ChannelMessageCounts {
		sum += c
	}
	assert.Equal(t, st.MessageCount, sum)
	assert.Equal(t, uint64(1), st.MessageStartTime)
	assert.Equal(t, uint64(99), st.MessageEndTime)
}

func TestWriter_EmptyFile(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, GetDefaultOptions())
	assert.Nil(t, w.Start("", "test"))
	assert.Nil(t, w.Finish())

	r := reader.NewSeekingReader(bytes.NewReader(buf.Bytes()), reader.Options{})
	summary, err := r.GetSummary()
	assert.Nil(t, err)
	assert.NotNil(t, summary)
	st := summary.Statistics
	assert.Equal(t, uint64(0), st.MessageCount)
	assert.Equal(t, uint64(0), st.MessageStartTime)
	assert.Equal(t, uint64(0), st.MessageEndTime)
	assert.Equal(t, uint32(0), st.ChunkCount)
	it, err := r.IterMessages(reader.GetDefaultIterOptions())
	assert.Nil(t, err)
	assert.False(t, it.HasNext())
	assert.Nil(t, it.Err())
}

// TestWriter_SummaryCRC verifies the footer checksum over the summary bytes
// concatenated with the footer prefix, the way the other implementations
// calculate it
func TestWriter_SummaryCRC(t *testing.T) {
	data := func() []byte {
		var buf bytes.Buffer
		w := NewWriter(&buf, GetDefaultOptions())
		assert.Nil(t, w.Start("", "test"))
		sid, _ := w.RegisterSchema("S", "jsonschema", []byte("{}"))
		cid, _ := w.RegisterChannel("/a", "json", sid, nil)
		assert.Nil(t, w.AddMessage(cid, 1, 1, 0, []byte("x")))
		assert.Nil(t, w.Finish())
		return buf.Bytes()
	}()

	r := reader.NewSeekingReader(bytes.NewReader(data), reader.Options{})
	it, err := r.Records()
	assert.Nil(t, err)
	var footer *mcap.Footer
	for it.HasNext() {
		rec, _ := it.Next()
		if f, ok := rec.(*mcap.Footer); ok {
			footer = f
		}
	}
	assert.Nil(t, it.Err())
	assert.NotNil(t, footer)
	assert.NotEqual(t, uint32(0), footer.SummaryCRC)
	assert.NotEqual(t, uint64(0), footer.SummaryStart)
	assert.NotEqual(t, uint64(0), footer.SummaryOffsetStart)

	// recompute the checksum over the summary section and the footer bytes
	// up to but not including the crc field
	covered := data[footer.SummaryStart : len(data)-mcap.MagicSize-4]
	assert.Equal(t, crc32.ChecksumIEEE(covered), footer.SummaryCRC)
}
