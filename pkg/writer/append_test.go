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
	"os"
	"path/filepath"
	"testing"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/golibs/files"
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/reader"
	"github.com/stretchr/testify/assert"
)

// writeInitial produces the two-message base file used by the append tests
func writeInitial(t *testing.T, path string, opts Options) {
	t.Helper()
	w, err := NewFileWriter(path, opts)
	assert.Nil(t, err)
	assert.Nil(t, w.Start("", "test"))
	sid, err := w.RegisterSchema("schema1", "jsonschema", []byte(`{"type":"object"}`))
	assert.Nil(t, err)
	cid, err := w.RegisterChannel("channel1", "json", sid, nil)
	assert.Nil(t, err)
	assert.Nil(t, w.AddMessage(cid, 0, 0, 0, []byte(`{"msg":"initial"}`)))
	assert.Nil(t, w.AddMessage(cid, 1, 1, 1, []byte(`{"msg":"second"}`)))
	assert.Nil(t, w.Finish())
}

func readSummary(t *testing.T, path string) *mcap.Summary {
	t.Helper()
	mr, err := files.OpenMMReader(path)
	assert.Nil(t, err)
	defer mr.Close()
	r := reader.NewSeekingReader(mr, reader.Options{})
	summary, err := r.GetSummary()
	assert.Nil(t, err)
	return summary
}

func TestOpenAppend_PreservesAndAdds(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestOpenAppend_PreservesAndAdds")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "base.mcap")
	writeInitial(t, path, GetDefaultOptions())

	w, err := OpenAppend(path, GetDefaultOptions())
	assert.Nil(t, err)
	// the same tuples keep the original ids
	sid, err := w.RegisterSchema("schema1", "jsonschema", []byte(`{"type":"object"}`))
	assert.Nil(t, err)
	assert.Equal(t, uint16(1), sid)
	cid, err := w.RegisterChannel("channel1", "json", sid, nil)
	assert.Nil(t, err)
	assert.Equal(t, uint16(1), cid)

	assert.Nil(t, w.AddMessage(cid, 2, 2, 2, []byte(`{"msg":"appended"}`)))
	cid2, err := w.RegisterChannel("channel2", "json", sid, nil)
	assert.Nil(t, err)
	assert.Equal(t, uint16(2), cid2)
	assert.Nil(t, w.AddMessage(cid2, 3, 3, 0, []byte(`{"msg":"new channel"}`)))
	assert.Nil(t, w.AddAttachment(0, 0, "a", "text/plain", []byte("foo")))
	assert.Nil(t, w.AddMetadata("m", mcap.NewStringMap("k", "v")))
	assert.Nil(t, w.Finish())

	summary := readSummary(t, path)
	assert.NotNil(t, summary)
	st := summary.Statistics
	assert.Equal(t, uint64(4), st.MessageCount)
	assert.Equal(t, uint32(1), st.AttachmentCount)
	assert.Equal(t, uint32(1), st.MetadataCount)
	assert.Equal(t, uint32(2), st.ChannelCount)
	assert.Equal(t, uint16(1), st.SchemaCount)
	assert.Equal(t, uint32(2), st.ChunkCount)
	assert.Equal(t, 2, len(summary.Channels))
	assert.Equal(t, 2, len(summary.ChunkIndexes))
	assert.Equal(t, 1, len(summary.AttachmentIndexes))
	assert.Equal(t, 1, len(summary.MetadataIndexes))

	// all four messages come back in the log-time order
	mr, err := files.OpenMMReader(path)
	assert.Nil(t, err)
	defer mr.Close()
	r := reader.NewSeekingReader(mr, reader.Options{ValidateCRCs: true})
	it, err := r.IterMessages(reader.GetDefaultIterOptions())
	assert.Nil(t, err)
	var times []uint64
	for it.HasNext() {
		mt, _ := it.Next()
		times = append(times, mt.Message.LogTime)
	}
	assert.Nil(t, it.Err())
	assert.Equal(t, []uint64{0, 1, 2, 3}, times)
}

func TestOpenAppend_Conflict(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestOpenAppend_Conflict")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "base.mcap")
	writeInitial(t, path, GetDefaultOptions())

	w, err := OpenAppend(path, GetDefaultOptions())
	assert.Nil(t, err)
	defer w.Finish()

	_, err = w.RegisterSchema("schema1", "jsonschema", []byte(`{"type":"array"}`))
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), "differs from previous schema record")

	_, err = w.RegisterChannel("channel1", "protobuf", 1, nil)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), "differs from previous channel record")
}

func TestOpenAppend_NonIndexed(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestOpenAppend_NonIndexed")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "plain.mcap")

	opts := GetDefaultOptions()
	opts.IndexTypes = IndexNone
	opts.RepeatSchemas = false
	opts.RepeatChannels = false
	opts.UseStatistics = false
	opts.UseSummaryOffsets = false
	writeInitial(t, path, opts)

	_, err = OpenAppend(path, GetDefaultOptions())
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "cannot append to MCAP without summary")
}

func TestOpenAppend_DataCRCContinued(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestOpenAppend_DataCRCContinued")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "crc.mcap")

	opts := GetDefaultOptions()
	opts.EnableDataCRCs = true
	writeInitial(t, path, opts)

	originalCRC := readDataEndCRC(t, path)
	assert.NotEqual(t, uint32(0), originalCRC)

	w, err := OpenAppend(path, GetDefaultOptions())
	assert.Nil(t, err)
	assert.Nil(t, w.AddMessage(1, 2, 2, 0, []byte(`{}`)))
	assert.Nil(t, w.Finish())

	newCRC := readDataEndCRC(t, path)
	assert.NotEqual(t, uint32(0), newCRC)
	assert.NotEqual(t, originalCRC, newCRC)

	// the full scan with the validation on accepts the continued checksum
	f, err := os.Open(path)
	assert.Nil(t, err)
	defer f.Close()
	sr := reader.NewStreamReader(f, reader.StreamOptions{ValidateCRCs: true})
	for sr.HasNext() {
		sr.Next()
	}
	assert.Nil(t, sr.Err())
}

func TestOpenAppend_NoStatistics(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestOpenAppend_NoStatistics")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "nostats.mcap")

	opts := GetDefaultOptions()
	opts.UseStatistics = false
	writeInitial(t, path, opts)

	w, err := OpenAppend(path, GetDefaultOptions())
	assert.Nil(t, err)
	assert.Nil(t, w.AddMessage(1, 2, 2, 0, []byte(`{}`)))
	assert.Nil(t, w.Finish())

	summary := readSummary(t, path)
	assert.NotNil(t, summary)
	assert.Nil(t, summary.Statistics)
}

// TestOpenAppend_Idempotent re-opens a file and finishes it without any
// changes: the bytes must come out identical
func TestOpenAppend_Idempotent(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestOpenAppend_Idempotent")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "idem.mcap")
	writeInitial(t, path, GetDefaultOptions())

	original, err := os.ReadFile(path)
	assert.Nil(t, err)

	w, err := OpenAppend(path, GetDefaultOptions())
	assert.Nil(t, err)
	assert.Nil(t, w.Finish())

	reopened, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, original, reopened)
}

func readDataEndCRC(t *testing.T, path string) uint32 {
	t.Helper()
	f, err := os.Open(path)
	assert.Nil(t, err)
	defer f.Close()
	sr := reader.NewStreamReader(f, reader.StreamOptions{})
	var crc uint32
	for sr.HasNext() {
		rec, _ := sr.Next()
		if de, ok := rec.(*mcap.DataEnd); ok {
			crc = de.DataSectionCRC
		}
	}
	assert.Nil(t, sr.Err())
	return crc
}
