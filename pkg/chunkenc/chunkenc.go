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

// Package chunkenc compresses and decompresses the chunk payloads. The
// compression is chosen per chunk by its name recorded in the Chunk record:
// the empty name is the identity, "lz4" is the LZ4 frame format (not the
// block one) and "zstd" is the Zstandard format.
package chunkenc

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/pkg/mcap"
)

var (
	zencOnce sync.Once
	zenc     *zstd.Encoder
	zdecOnce sync.Once
	zdec     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	zencOnce.Do(func() {
		// the encoder is stateless in the EncodeAll mode, so one per process is enough
		zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	return zenc
}

func zstdDecoder() *zstd.Decoder {
	zdecOnce.Do(func() {
		zdec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zdec
}

// Supported tells whether the compression name is known to this build
func Supported(compression string) bool {
	switch compression {
	case mcap.CompressionNone, mcap.CompressionLZ4, mcap.CompressionZstd:
		return true
	}
	return false
}

// Compress encodes data with the compression given. The identity compression
// returns data as is, without copying.
func Compress(compression string, data []byte) ([]byte, error) {
	switch compression {
	case mcap.CompressionNone:
		return data, nil
	case mcap.CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("could not compress %d bytes with lz4: %w", len(data), err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("could not finish the lz4 frame: %w", err)
		}
		return buf.Bytes(), nil
	case mcap.CompressionZstd:
		return zstdEncoder().EncodeAll(data, nil), nil
	}
	return nil, fmt.Errorf("unsupported compression %q: %w", compression, errors.ErrInvalid)
}

// Decompress decodes data compressed by the compression given. The
// uncompressedSize recorded in the chunk helps to bound the allocations; it
// may be 0 when unknown.
func Decompress(compression string, data []byte, uncompressedSize uint64) ([]byte, error) {
	switch compression {
	case mcap.CompressionNone:
		return data, nil
	case mcap.CompressionLZ4:
		buf := bytes.NewBuffer(make([]byte, 0, uncompressedSize))
		if _, err := io.Copy(buf, lz4.NewReader(bytes.NewReader(data))); err != nil {
			return nil, fmt.Errorf("could not decompress the lz4 frame of %d bytes: %w", len(data), err)
		}
		return buf.Bytes(), nil
	case mcap.CompressionZstd:
		res, err := zstdDecoder().DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("could not decompress the zstd block of %d bytes: %w", len(data), err)
		}
		return res, nil
	}
	return nil, fmt.Errorf("unsupported compression %q: %w", compression, errors.ErrInvalid)
}
