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
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/pkg/chunkenc"
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/reader"
	"github.com/solarisdb/mcap/pkg/wire"
)

// dataEndLength is the full serialized size of a DataEnd record
const dataEndLength = wire.FrameSize + 4

// OpenAppend re-opens the finished MCAP file at path and resumes writing to
// it in place. The schemas, channels, statistics and indexes of the existing
// summary become the writer baseline, the old summary and footer are
// reclaimed by the truncation, and Finish() re-seals the file. The summary
// emission flags of opts are re-derived from what the original file carried;
// the chunking, compression, chunk CRC and summary CRC settings apply to the
// new records only. The data-section CRC is kept on exactly when the original
// DataEnd record carries a non-zero one, whatever opts says.
//
// A writer in the append mode must always reach Finish(): until then the
// original summary has been discarded and the file stays non-indexed.
func OpenAppend(path string, opts Options) (*Writer, error) {
	if !chunkenc.Supported(opts.Compression) {
		return nil, fmt.Errorf("unsupported compression %q: %w", opts.Compression, errors.ErrInvalid)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", path, err)
	}
	w, err := openAppend(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func openAppend(f *os.File, opts Options) (*Writer, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	end := fi.Size()
	if end < int64(2*mcap.MagicSize+mcap.FooterLength) {
		return nil, fmt.Errorf("the file of %d bytes is too short to be an MCAP: %w", end, errors.ErrInvalid)
	}
	footer, err := readFooterAt(f, end-int64(mcap.FooterLength+mcap.MagicSize))
	if err != nil {
		return nil, err
	}
	if footer.SummaryStart == 0 {
		return nil, fmt.Errorf("cannot append to MCAP without summary: %w", errors.ErrInvalid)
	}

	summary, err := readSummaryAt(f, int64(footer.SummaryStart))
	if err != nil {
		return nil, err
	}

	w := NewWriter(f, opts)
	w.f = f
	w.state = wsWriting
	w.appendMode = true

	if err = w.loadTables(summary); err != nil {
		return nil, err
	}
	w.chunkIndexes = summary.ChunkIndexes
	w.attachmentIndexes = summary.AttachmentIndexes
	w.metadataIndexes = summary.MetadataIndexes
	w.deriveOptions(summary, footer)

	// the new data replaces the old DataEnd record when it is found right
	// before the summary, so one terminator seals the extended data section
	dataEndOffset := int64(footer.SummaryStart)
	oldDataEnd := readDataEndAt(f, dataEndOffset-dataEndLength)
	if oldDataEnd != nil {
		dataEndOffset -= dataEndLength
	}

	if oldDataEnd != nil && oldDataEnd.DataSectionCRC != 0 {
		// re-seed the accumulator from the existing data section
		w.opts.EnableDataCRCs = true
		if w.dataCRC, err = crcOver(f, dataEndOffset); err != nil {
			return nil, err
		}
	} else {
		w.opts.EnableDataCRCs = false
	}

	if err = f.Truncate(dataEndOffset); err != nil {
		return nil, fmt.Errorf("could not truncate the file to %d bytes: %w", dataEndOffset, err)
	}
	if _, err = f.Seek(dataEndOffset, io.SeekStart); err != nil {
		return nil, err
	}
	w.pos = uint64(dataEndOffset)
	w.logger.Debugf("opened for append at %d, %d schemas, %d channels, %d chunks",
		dataEndOffset, len(w.schemas), len(w.channels), len(w.chunkIndexes))
	return w, nil
}

// loadTables restores the ordered schema and channel tables from the
// summary, keeping the original ids
func (w *Writer) loadTables(summary *mcap.Summary) error {
	for _, s := range sortedByID(summary.Schemas) {
		if int(s.ID) != len(w.schemas)+1 {
			return fmt.Errorf("the schema ids are not assigned densely from 1, got %d: %w", s.ID, errors.ErrInvalid)
		}
		w.schemas = append(w.schemas, s)
		w.schemasByName[s.Name] = s
	}
	for _, c := range sortedByID(summary.Channels) {
		if int(c.ID) != len(w.channels)+1 {
			return fmt.Errorf("the channel ids are not assigned densely from 1, got %d: %w", c.ID, errors.ErrInvalid)
		}
		w.channels = append(w.channels, c)
		w.chansByTopic[c.Topic] = c
	}
	if summary.Statistics != nil {
		w.stats = *summary.Statistics
		if w.stats.ChannelMessageCounts == nil {
			w.stats.ChannelMessageCounts = map[uint16]uint64{}
		}
	} else {
		w.stats.SchemaCount = uint16(len(w.schemas))
		w.stats.ChannelCount = uint32(len(w.channels))
		w.stats.ChunkCount = uint32(len(summary.ChunkIndexes))
	}
	return nil
}

// deriveOptions re-derives the summary emission flags from what the
// original file carried
func (w *Writer) deriveOptions(summary *mcap.Summary, footer *mcap.Footer) {
	w.opts.UseStatistics = summary.Statistics != nil
	w.opts.RepeatSchemas = len(summary.Schemas) > 0
	w.opts.RepeatChannels = len(summary.Channels) > 0
	w.opts.UseSummaryOffsets = footer.SummaryOffsetStart != 0
	if summary.Statistics != nil {
		st := summary.Statistics
		if st.ChunkCount > 0 && len(summary.ChunkIndexes) == 0 {
			w.opts.IndexTypes &^= IndexChunk | IndexMessage
		}
		if st.AttachmentCount > 0 && len(summary.AttachmentIndexes) == 0 {
			w.opts.IndexTypes &^= IndexAttachment
		}
		if st.MetadataCount > 0 && len(summary.MetadataIndexes) == 0 {
			w.opts.IndexTypes &^= IndexMetadata
		}
	}
	for _, ci := range summary.ChunkIndexes {
		if len(ci.MessageIndexOffsets) == 0 {
			w.opts.IndexTypes &^= IndexMessage
			break
		}
	}
}

func readFooterAt(f *os.File, offset int64) (*mcap.Footer, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	s := wire.NewReadStream(f, false)
	op, err := s.ReadU8()
	if err != nil {
		return nil, err
	}
	length, err := s.ReadU64()
	if err != nil {
		return nil, err
	}
	if mcap.Opcode(op) != mcap.OpFooter {
		return nil, fmt.Errorf("no footer record at the end of the file: %w", errors.ErrInvalid)
	}
	rec, err := mcap.ReadRecord(s, mcap.OpFooter, length)
	if err != nil {
		return nil, err
	}
	return rec.(*mcap.Footer), nil
}

func readSummaryAt(f *os.File, offset int64) (*mcap.Summary, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	sr := reader.NewStreamReader(f, reader.StreamOptions{SkipMagic: true, EmitChunks: true})
	summary := mcap.NewSummary()
	for {
		rec, ok := sr.Next()
		if !ok {
			if err := sr.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("the summary section ended before a footer record: %w", errors.ErrInvalid)
		}
		if _, isFooter := rec.(*mcap.Footer); isFooter {
			return summary, nil
		}
		summary.Collect(rec)
	}
}

// readDataEndAt returns the DataEnd record framed at the offset, or nil
// when there is no such record there
func readDataEndAt(f *os.File, offset int64) *mcap.DataEnd {
	if offset < 0 {
		return nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil
	}
	s := wire.NewReadStream(f, false)
	op, err := s.ReadU8()
	if err != nil || mcap.Opcode(op) != mcap.OpDataEnd {
		return nil
	}
	length, err := s.ReadU64()
	if err != nil || length != 4 {
		return nil
	}
	rec, err := mcap.ReadRecord(s, mcap.OpDataEnd, length)
	if err != nil {
		return nil
	}
	return rec.(*mcap.DataEnd)
}

// crcOver calculates the CRC32 over the first n bytes of the file
func crcOver(f *os.File, n int64) (uint32, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	var crc uint32
	buf := make([]byte, 64*1024)
	left := n
	for left > 0 {
		l := int64(len(buf))
		if left < l {
			l = left
		}
		read, err := io.ReadFull(f, buf[:l])
		if err != nil {
			return 0, fmt.Errorf("could not re-read the data section: %w", err)
		}
		crc = crc32.Update(crc, crc32.IEEETable, buf[:read])
		left -= int64(read)
	}
	return crc, nil
}

func sortedByID[V interface{ *mcap.Schema | *mcap.Channel }](m map[uint16]V) []V {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
