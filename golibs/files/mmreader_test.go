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
package files

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/stretchr/testify/assert"
)

func TestMMReader(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestMMReader")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "data.bin")
	content := []byte("0123456789abcdef")
	assert.Nil(t, os.WriteFile(fn, content, 0644))

	mr, err := OpenMMReader(fn)
	assert.Nil(t, err)
	assert.Equal(t, int64(len(content)), mr.Size())

	buf := make([]byte, 4)
	n, err := mr.ReadAt(buf, 10)
	assert.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("abcd"), buf)

	pos, err := mr.Seek(-6, io.SeekEnd)
	assert.Nil(t, err)
	assert.Equal(t, int64(10), pos)
	n, err = mr.Read(buf)
	assert.Nil(t, err)
	assert.Equal(t, []byte("abcd"), buf[:n])

	// reading past the end reports io.EOF
	_, err = mr.ReadAt(buf, int64(len(content)))
	assert.Equal(t, io.EOF, err)
	n, err = mr.ReadAt(buf, int64(len(content))-2)
	assert.Equal(t, 2, n)
	assert.Equal(t, io.EOF, err)

	assert.Nil(t, mr.Close())
	_, err = mr.ReadAt(buf, 0)
	assert.True(t, errors.Is(err, errors.ErrClosed))
}

func TestOpenMMReader_NotExist(t *testing.T) {
	_, err := OpenMMReader("/definitely/not/exists")
	assert.NotNil(t, err)
}

func TestOpenMMReader_Empty(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestOpenMMReader_Empty")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "empty.bin")
	assert.Nil(t, os.WriteFile(fn, nil, 0644))
	mr, err := OpenMMReader(fn)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), mr.Size())
	_, err = mr.ReadAt(make([]byte, 1), 0)
	assert.Equal(t, io.EOF, err)
	assert.Nil(t, mr.Close())
}
