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

// Opcode identifies the type of a serialized record. Values not listed here
// are reserved for the future format versions; the codec never treats an
// unknown opcode as a fatal problem and skips such records by their length.
type Opcode uint8

const (
	OpHeader          Opcode = 0x01
	OpFooter          Opcode = 0x02
	OpSchema          Opcode = 0x03
	OpChannel         Opcode = 0x04
	OpMessage         Opcode = 0x05
	OpChunk           Opcode = 0x06
	OpMessageIndex    Opcode = 0x07
	OpChunkIndex      Opcode = 0x08
	OpAttachment      Opcode = 0x09
	OpAttachmentIndex Opcode = 0x0A
	OpStatistics      Opcode = 0x0B
	OpMetadata        Opcode = 0x0C
	OpMetadataIndex   Opcode = 0x0D
	OpSummaryOffset   Opcode = 0x0E
	OpDataEnd         Opcode = 0x0F
)

// String implements fmt.Stringer
func (op Opcode) String() string {
	switch op {
	case OpHeader:
		return "header"
	case OpFooter:
		return "footer"
	case OpSchema:
		return "schema"
	case OpChannel:
		return "channel"
	case OpMessage:
		return "message"
	case OpChunk:
		return "chunk"
	case OpMessageIndex:
		return "message index"
	case OpChunkIndex:
		return "chunk index"
	case OpAttachment:
		return "attachment"
	case OpAttachmentIndex:
		return "attachment index"
	case OpStatistics:
		return "statistics"
	case OpMetadata:
		return "metadata"
	case OpMetadataIndex:
		return "metadata index"
	case OpSummaryOffset:
		return "summary offset"
	case OpDataEnd:
		return "data end"
	}
	return "unknown"
}
