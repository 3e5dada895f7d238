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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/stretchr/testify/assert"
)

type testCfg struct {
	Name    string `json:"name"`
	Limit   uint64
	Verbose bool
	Nested  nestedCfg
}

type nestedCfg struct {
	Level string
}

func TestEnricher_LoadFromYAMLFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestEnricher_LoadFromYAMLFile")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "cfg.yaml")
	assert.Nil(t, os.WriteFile(fn, []byte("name: fromfile\nlimit: 42\n"), 0644))

	e := NewEnricher(testCfg{Name: "default", Verbose: true})
	assert.Nil(t, e.LoadFromFile(fn))
	v := e.Value()
	assert.Equal(t, "fromfile", v.Name)
	assert.Equal(t, uint64(42), v.Limit)
	// the fields absent in the file keep their values
	assert.True(t, v.Verbose)
}

func TestEnricher_LoadFromJSONFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "TestEnricher_LoadFromJSONFile")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "cfg.json")
	assert.Nil(t, os.WriteFile(fn, []byte(`{"name":"json","limit":7}`), 0644))

	e := NewEnricher(testCfg{})
	assert.Nil(t, e.LoadFromFile(fn))
	assert.Equal(t, "json", e.Value().Name)
	assert.Equal(t, uint64(7), e.Value().Limit)
}

func TestEnricher_UnknownFormat(t *testing.T) {
	e := NewEnricher(testCfg{})
	assert.True(t, errors.Is(e.LoadFromFile("cfg.toml"), errors.ErrInvalid))
	assert.Nil(t, e.LoadFromFile(""))
}

func TestEnricher_ApplyKeyValues(t *testing.T) {
	e := NewEnricher(testCfg{})
	e.ApplyKeyValues("MCAP", "_", map[string]string{
		"MCAP_LIMIT":        "123",
		"MCAP_NAME":         "plain string",
		"MCAP_VERBOSE":      "true",
		"MCAP_NESTED_LEVEL": "debug",
		"OTHER_LIMIT":       "555",
	})
	v := e.Value()
	assert.Equal(t, uint64(123), v.Limit)
	assert.Equal(t, "plain string", v.Name)
	assert.True(t, v.Verbose)
	assert.Equal(t, "debug", v.Nested.Level)
}

func TestEnricher_JSONAlias(t *testing.T) {
	e := NewEnricher(testCfg{})
	e.ApplyKeyValues("", "_", map[string]string{"NAME": "via alias"})
	assert.Equal(t, "via alias", e.Value().Name)
}

func TestNewEnricher_NonStruct(t *testing.T) {
	assert.Panics(t, func() {
		NewEnricher(123)
	})
}
