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

// Magic is the 8-byte sequence which frames every well-formed file: it opens
// the data section and follows the footer.
var Magic = []byte{0x89, 0x4D, 0x43, 0x41, 0x50, 0x30, 0x0D, 0x0A}

// MagicSize is the length of the Magic sequence
const MagicSize = 8

// Well-known profiles. The profile advertises conventions for the channels
// and schemas in the file; an empty profile carries no conventions.
const (
	ProfileEmpty = ""
	ProfileROS1  = "ros1"
	ProfileROS2  = "ros2"
)

// Well-known schema encodings. An empty encoding means no schema is available.
const (
	SchemaEncodingNone       = ""
	SchemaEncodingProtobuf   = "protobuf"
	SchemaEncodingFlatbuffer = "flatbuffer"
	SchemaEncodingROS1Msg    = "ros1msg"
	SchemaEncodingROS2Msg    = "ros2msg"
	SchemaEncodingROS2IDL    = "ros2idl"
	SchemaEncodingJSONSchema = "jsonschema"
)

// Well-known message encodings
const (
	MessageEncodingROS1       = "ros1"
	MessageEncodingCDR        = "cdr"
	MessageEncodingProtobuf   = "protobuf"
	MessageEncodingFlatbuffer = "flatbuffer"
	MessageEncodingCBOR       = "cbor"
	MessageEncodingJSON       = "json"
)

// Chunk compression names
const (
	CompressionNone = ""
	CompressionLZ4  = "lz4"
	CompressionZstd = "zstd"
)
