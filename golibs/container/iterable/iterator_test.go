// Copyright 2023 The acquirecloud Authors
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
package iterable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyIterator(t *testing.T) {
	ei := &EmptyIterator[int]{}
	assert.False(t, ei.HasNext())
	v, ok := ei.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, v)
	assert.Nil(t, ei.Close())
}

func TestSliceIterator(t *testing.T) {
	si := NewSliceIterator([]string{"a", "b"})
	assert.True(t, si.HasNext())
	v, ok := si.Next()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = si.Next()
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.False(t, si.HasNext())
	_, ok = si.Next()
	assert.False(t, ok)
	assert.Nil(t, si.Close())
}
