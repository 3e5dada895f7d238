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
package mcap

// Summary is the in-memory rollup of the records collected from the summary
// section of a file. All the fields are optional: whatever groups the writer
// emitted are present, the rest stay empty.
type Summary struct {
	// Statistics is the file-wide counters record, when present
	Statistics *Statistics
	// Schemas maps the schema ID to the schema record
	Schemas map[uint16]*Schema
	// Channels maps the channel ID to the channel record
	Channels map[uint16]*Channel
	// ChunkIndexes locate the Chunk records of the data section
	ChunkIndexes []*ChunkIndex
	// AttachmentIndexes locate the Attachment records of the data section
	AttachmentIndexes []*AttachmentIndex
	// MetadataIndexes locate the Metadata records of the data section
	MetadataIndexes []*MetadataIndex
}

// NewSummary returns an empty Summary
func NewSummary() *Summary {
	return &Summary{
		Schemas:  map[uint16]*Schema{},
		Channels: map[uint16]*Channel{},
	}
}

// Collect sorts the record into the corresponding summary group. Records
// which do not belong to the summary section are ignored.
func (s *Summary) Collect(rec Record) {
	switch r := rec.(type) {
	case *Statistics:
		s.Statistics = r
	case *Schema:
		s.Schemas[r.ID] = r
	case *Channel:
		s.Channels[r.ID] = r
	case *ChunkIndex:
		s.ChunkIndexes = append(s.ChunkIndexes, r)
	case *AttachmentIndex:
		s.AttachmentIndexes = append(s.AttachmentIndexes, r)
	case *MetadataIndex:
		s.MetadataIndexes = append(s.MetadataIndexes, r)
	}
}
