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
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/solarisdb/mcap/golibs/errors"
)

// MMReader provides a read-only memory mapped view over an existing file.
// It implements io.ReadSeeker, io.ReaderAt and io.Closer, so it can serve
// as a zero-copy byte source for the code that consumes seekable streams.
//
// NOTE: ReadAt may be called from different go-routines at the same time,
// but Read/Seek share the position and must be used from one go-routine only.
type MMReader struct {
	fn   string
	f    *os.File
	mf   mmap.MMap
	size int64

	lock sync.Mutex
	pos  int64
}

var (
	_ io.ReadSeeker = (*MMReader)(nil)
	_ io.ReaderAt   = (*MMReader)(nil)
	_ io.Closer     = (*MMReader)(nil)
)

// OpenMMReader maps the whole file fname into the memory for reading
func OpenMMReader(fname string) (*MMReader, error) {
	fi, err := os.Stat(fname)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", fname, err)
	}
	if fi.Size() == 0 {
		// nothing to map, keep the descriptor only
		return &MMReader{fn: fname, f: f, size: 0}, nil
	}
	mf, err := mmap.MapRegion(f, int(fi.Size()), mmap.RDONLY, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("could not map file %s to the memory: %w", fname, err)
	}
	return &MMReader{fn: fname, f: f, mf: mf, size: fi.Size()}, nil
}

// Size returns the size of the mapped region
func (mr *MMReader) Size() int64 {
	return mr.size
}

// Read implements io.Reader
func (mr *MMReader) Read(p []byte) (int, error) {
	mr.lock.Lock()
	pos := mr.pos
	mr.lock.Unlock()
	n, err := mr.ReadAt(p, pos)
	mr.lock.Lock()
	mr.pos = pos + int64(n)
	mr.lock.Unlock()
	return n, err
}

// ReadAt implements io.ReaderAt
func (mr *MMReader) ReadAt(p []byte, off int64) (int, error) {
	if mr.f == nil {
		return 0, fmt.Errorf("the file %s reader: %w", mr.fn, errors.ErrClosed)
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d: %w", off, errors.ErrInvalid)
	}
	if off >= mr.size {
		return 0, io.EOF
	}
	n := copy(p, mr.mf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker
func (mr *MMReader) Seek(offset int64, whence int) (int64, error) {
	mr.lock.Lock()
	defer mr.lock.Unlock()
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = mr.pos + offset
	case io.SeekEnd:
		pos = mr.size + offset
	default:
		return 0, fmt.Errorf("unknown whence value %d: %w", whence, errors.ErrInvalid)
	}
	if pos < 0 {
		return 0, fmt.Errorf("seek to the negative position %d: %w", pos, errors.ErrInvalid)
	}
	mr.pos = pos
	return pos, nil
}

// Close implements io.Closer
func (mr *MMReader) Close() error {
	var err error
	if mr.f != nil {
		if mr.mf != nil {
			err = mr.mf.Unmap()
			mr.mf = nil
		}
		if cerr := mr.f.Close(); err == nil {
			err = cerr
		}
		mr.f = nil
		mr.size = -1
	}
	return err
}
