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
package chunkenc

import (
	"bytes"
	"testing"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/stretchr/testify/assert"
)

func TestCompress_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the chunk payload compresses well "), 100)
	for _, compression := range []string{mcap.CompressionNone, mcap.CompressionLZ4, mcap.CompressionZstd} {
		compressed, err := Compress(compression, payload)
		assert.Nil(t, err, compression)
		if compression != mcap.CompressionNone {
			assert.Less(t, len(compressed), len(payload), compression)
		}
		restored, err := Decompress(compression, compressed, uint64(len(payload)))
		assert.Nil(t, err, compression)
		assert.Equal(t, payload, restored, compression)
	}
}

func TestCompress_Identity(t *testing.T) {
	payload := []byte("as is")
	compressed, err := Compress(mcap.CompressionNone, payload)
	assert.Nil(t, err)
	assert.Equal(t, payload, compressed)
}

func TestCompress_Unsupported(t *testing.T) {
	_, err := Compress("snappy", []byte("x"))
	assert.True(t, errors.Is(err, errors.ErrInvalid))
	_, err = Decompress("snappy", []byte("x"), 1)
	assert.True(t, errors.Is(err, errors.ErrInvalid))
	assert.False(t, Supported("snappy"))
	assert.True(t, Supported(mcap.CompressionZstd))
}

func TestDecompress_Garbage(t *testing.T) {
	_, err := Decompress(mcap.CompressionZstd, []byte("definitely not zstd"), 10)
	assert.NotNil(t, err)
	_, err = Decompress(mcap.CompressionLZ4, []byte("definitely not lz4"), 10)
	assert.NotNil(t, err)
}
