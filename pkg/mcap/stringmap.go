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

type (
	// StringPair is one key-value entry of a StringMap
	StringPair struct {
		Key   string
		Value string
	}

	// StringMap is the ordered string-to-string map persisted in Channel and
	// Metadata records. The serialization order is the insertion order, so a
	// round-trip reproduces the bytes exactly, which a plain Go map would not.
	StringMap []StringPair
)

// NewStringMap builds a StringMap from the alternating key, value arguments
func NewStringMap(kvs ...string) StringMap {
	if len(kvs)%2 != 0 {
		panic("NewStringMap requires an even number of arguments")
	}
	sm := make(StringMap, 0, len(kvs)/2)
	for i := 0; i < len(kvs); i += 2 {
		sm = append(sm, StringPair{Key: kvs[i], Value: kvs[i+1]})
	}
	return sm
}

// Get returns the value stored for the key
func (sm StringMap) Get(key string) (string, bool) {
	for _, p := range sm {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Equal reports whether sm and other hold the same pairs in the same order
func (sm StringMap) Equal(other StringMap) bool {
	if len(sm) != len(other) {
		return false
	}
	for i, p := range sm {
		if other[i] != p {
			return false
		}
	}
	return true
}

// byteLen returns the serialized size of the pairs, the u32 block prefix excluded
func (sm StringMap) byteLen() uint32 {
	var ln uint32
	for _, p := range sm {
		ln += 8 + uint32(len(p.Key)) + uint32(len(p.Value))
	}
	return ln
}
