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
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/solarisdb/mcap/golibs/errors"
	"github.com/solarisdb/mcap/golibs/logging"
)

type (
	// Enricher interface provides some helper functions to work with the configuration
	// structures. It keeps a structure value of the type T and allows to load its value
	// from a file and to apply environment variables on top of it.
	//
	// The following contract is applied to the type T:
	// - only the exported fields (started from the capital letter) will be updated
	// - the fields may have JSON annotation, where the JSON field name value can be used
	//   as an alias for the field
	// - all the fields' names are case-insensitive
	Enricher[T any] interface {
		// LoadFromFile allows to load the structure's fields from the YAML or JSON file.
		// Which format is used, is defined by the file extension (.json or .yaml)
		LoadFromFile(fileName string) error

		// ApplyEnvVariables scans the existing environment variables and applies the ones
		// which names start from prefix. The field names in the variable name are separated
		// by sep, e.g. for the prefix "MCAP" and the separator "_" the variable
		// MCAP_RECORDSIZELIMIT will be applied to the field RecordSizeLimit.
		// The variables values should be JSON values; plain strings may be unquoted.
		ApplyEnvVariables(prefix, sep string) error

		// ApplyKeyValues allows to apply the key-value pairs to the structure. The key-value
		// pairs assignment rules are the same as for the ApplyEnvVariables function.
		ApplyKeyValues(prefix, sep string, keyValues map[string]string)

		// Value returns the enricher current value
		Value() T
	}

	enricher[T any] struct {
		log logging.Logger
		val T
	}
)

// NewEnricher constructs new Enricher for the type T
func NewEnricher[T any](val T) Enricher[T] {
	tp := reflect.TypeOf(val)
	if tp.Kind() != reflect.Struct {
		panic(fmt.Sprintf("only structs are acceptable in the Enricher, but got the type %s", tp.Kind()))
	}
	e := new(enricher[T])
	e.val = val
	e.log = logging.NewLogger("config.enricher." + tp.Name())
	return e
}

func (e *enricher[T]) LoadFromFile(fileName string) error {
	if fileName == "" {
		return nil
	}
	fn := strings.TrimSpace(strings.ToLower(fileName))
	var unmarshal func([]byte, interface{}) error
	switch {
	case strings.HasSuffix(fn, ".yaml") || strings.HasSuffix(fn, ".yml"):
		unmarshal = yaml.Unmarshal
	case strings.HasSuffix(fn, ".json"):
		unmarshal = json.Unmarshal
	default:
		return fmt.Errorf("cannot recognize file format %s, expecting .json or .yaml: %w", fileName, errors.ErrInvalid)
	}
	e.log.Infof("reading configuration from %s", fileName)
	buf, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("could not read file %s: %w", fileName, err)
	}
	if err = unmarshal(buf, &e.val); err != nil {
		return fmt.Errorf("could not unmarshal file %s: %w", fileName, err)
	}
	return nil
}

func (e *enricher[T]) ApplyEnvVariables(prefix, sep string) error {
	env := make(map[string]string)
	for _, v := range os.Environ() {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	e.ApplyKeyValues(prefix, sep, env)
	return nil
}

func (e *enricher[T]) ApplyKeyValues(prefix, sep string, keyValues map[string]string) {
	sep = strings.ToUpper(sep)
	pfx := ""
	if prefix != "" {
		pfx = strings.ToUpper(prefix) + sep
	}
	for key, value := range keyValues {
		key := strings.ToUpper(key)
		if !strings.HasPrefix(key, pfx) {
			continue
		}
		if e.assignStruct(reflect.ValueOf(&e.val).Elem(), key[len(pfx):], sep, value) {
			e.log.Debugf("applied the key=%s", key)
		} else {
			e.log.Debugf("the key=%s cannot be applied (no matched fields)", key)
		}
	}
}

func (e *enricher[T]) Value() T {
	return e.val
}

// assignStruct walks the target structure by the path and assigns the leaf field value.
// The path elements are the field names (or their json aliases) joined by sep.
func (e *enricher[T]) assignStruct(target reflect.Value, path, sep, value string) bool {
	tp := target.Type()
	for i := 0; i < tp.NumField(); i++ {
		sf := tp.Field(i)
		if !sf.IsExported() {
			continue
		}
		for _, name := range fieldNames(sf) {
			name = strings.ToUpper(name)
			if path == name {
				return assignField(target.Field(i), value)
			}
			if strings.HasPrefix(path, name+sep) && sf.Type.Kind() == reflect.Struct {
				return e.assignStruct(target.Field(i), path[len(name)+len(sep):], sep, value)
			}
		}
	}
	return false
}

func fieldNames(sf reflect.StructField) []string {
	names := []string{sf.Name}
	if tag, ok := sf.Tag.Lookup("json"); ok {
		if alias, _, _ := strings.Cut(tag, ","); alias != "" && alias != "-" {
			names = append(names, alias)
		}
	}
	return names
}

func assignField(field reflect.Value, value string) bool {
	if !field.CanAddr() {
		return false
	}
	ptr := field.Addr().Interface()
	if err := json.Unmarshal([]byte(value), ptr); err == nil {
		return true
	}
	if field.Kind() == reflect.String {
		// a plain, unquoted string value
		field.SetString(value)
		return true
	}
	return false
}
