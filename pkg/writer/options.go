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

import "github.com/solarisdb/mcap/pkg/mcap"

// IndexType is the bit set choosing which indexes are written to the file
type IndexType uint8

const (
	// IndexNone writes a data-section-only file
	IndexNone IndexType = 0
	// IndexAttachment writes AttachmentIndex records into the summary
	IndexAttachment IndexType = 1 << iota
	// IndexChunk writes ChunkIndex records into the summary
	IndexChunk
	// IndexMessage writes a MessageIndex record per channel after every chunk
	IndexMessage
	// IndexMetadata writes MetadataIndex records into the summary
	IndexMetadata
	// IndexAll writes every index kind. If in doubt, choose this.
	IndexAll = IndexAttachment | IndexChunk | IndexMessage | IndexMetadata
)

// Options define the writer settings
type Options struct {
	// ChunkSize is the target uncompressed size which triggers the chunk emission
	ChunkSize uint64
	// Compression is applied to the chunk payloads, one of
	// mcap.CompressionNone, mcap.CompressionLZ4 or mcap.CompressionZstd
	Compression string
	// IndexTypes choose the indexes written to the file
	IndexTypes IndexType
	// RepeatSchemas emits all the schemas again in the summary
	RepeatSchemas bool
	// RepeatChannels emits all the channels again in the summary
	RepeatChannels bool
	// UseChunking groups the messages into the compressed chunks; when off
	// the records go straight into the data section
	UseChunking bool
	// UseStatistics emits a Statistics record into the summary
	UseStatistics bool
	// UseSummaryOffsets emits the SummaryOffset records after the summary body
	UseSummaryOffsets bool
	// EnableCRCs computes the chunk uncompressed CRCs and the summary CRC
	EnableCRCs bool
	// EnableDataCRCs also maintains the running data-section CRC for DataEnd
	EnableDataCRCs bool
}

// GetDefaultOptions returns the writer settings for a fully indexed,
// zstd-compressed file
func GetDefaultOptions() Options {
	return Options{
		ChunkSize:         1024 * 1024,
		Compression:       mcap.CompressionZstd,
		IndexTypes:        IndexAll,
		RepeatSchemas:     true,
		RepeatChannels:    true,
		UseChunking:       true,
		UseStatistics:     true,
		UseSummaryOffsets: true,
		EnableCRCs:        true,
		EnableDataCRCs:    false,
	}
}
