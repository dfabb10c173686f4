// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package codecs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// NewFormattedJSONEncoder returns a json encoder configured for
// pretty-printed output (human-readable)
func NewFormattedJSONEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	enc.SetEscapeHTML(false)
	return enc
}

// LoadObjectFromFile implements the common pattern for loading an instance
// of an object from a json file.
func LoadObjectFromFile(filename string, object interface{}) (err error) {
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	err = dec.Decode(object)
	return
}

// SaveObjectToFile implements the common pattern for saving an object to a file as json
func SaveObjectToFile(filename string, object interface{}, prettyFormat bool) error {
	var buf bytes.Buffer
	var enc *json.Encoder
	if prettyFormat {
		enc = NewFormattedJSONEncoder(&buf)
	} else {
		enc = json.NewEncoder(&buf)
	}
	if err := enc.Encode(object); err != nil {
		return err
	}
	return writeFileAtomic(filename, buf.Bytes())
}

// SaveNonDefaultValuesToFile saves a struct to a file as json, but only fields that are not
// currently set to their value in defaultObject. Fields named in alwaysInclude are written
// regardless. Nested struct values are compared as a whole.
func SaveNonDefaultValuesToFile(filename string, object, defaultObject interface{}, alwaysInclude []string, prettyFormat bool) error {
	objectValues, err := createValueMap(object)
	if err != nil {
		return err
	}
	defaultValues, err := createValueMap(defaultObject)
	if err != nil {
		return err
	}

	out := make(map[string]interface{}, len(objectValues))
	for name, value := range objectValues {
		if slices.Contains(alwaysInclude, name) || !isDefaultValue(name, objectValues, defaultValues) {
			out[name] = value
		}
	}

	// encoding/json sorts map keys, so the output is stable.
	return SaveObjectToFile(filename, out, prettyFormat)
}

// SortedFieldNames returns the exported field names of a struct value in lexical order.
func SortedFieldNames(object interface{}) ([]string, error) {
	values, err := createValueMap(object)
	if err != nil {
		return nil, err
	}
	names := maps.Keys(values)
	slices.Sort(names)
	return names, nil
}

func writeFileAtomic(filename string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

func createValueMap(object interface{}) (map[string]interface{}, error) {
	val := reflect.Indirect(reflect.ValueOf(object))
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("codecs: expected a struct, got %s", val.Kind())
	}

	valueMap := make(map[string]interface{})
	for i := 0; i < val.NumField(); i++ {
		field := val.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		valueMap[field.Name] = val.Field(i).Interface()
	}
	return valueMap, nil
}

func isDefaultValue(name string, values, defaults map[string]interface{}) bool {
	val, hasVal := values[name]
	def, hasDef := defaults[name]
	if hasVal != hasDef {
		return false
	}

	return reflect.DeepEqual(val, def)
}
