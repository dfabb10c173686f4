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

package config

import (
	"fmt"
	"reflect"
	"strconv"
)

// MigrationResult represents a single field migration from one version to another
type MigrationResult struct {
	FieldName              string
	OldVersion, NewVersion uint32
	OldValue, NewValue     any
}

// migrate walks cfg forward one version at a time. A field is moved to the new default
// only while it still holds the default of the version being migrated from; values the
// operator changed are left alone.
func migrate(cfg Local) (newCfg Local, migrations []MigrationResult, err error) {
	newCfg = cfg
	latestConfigVersion := getLatestConfigVersion()

	if cfg.Version > latestConfigVersion {
		err = fmt.Errorf("unexpected config version: %d", cfg.Version)
		return
	}

	localType := reflect.TypeOf((*Local)(nil)).Elem()
	for newCfg.Version < latestConfigVersion {
		previousDefaults := GetVersionedDefaultLocalConfig(newCfg.Version)
		nextVersion := newCfg.Version + 1
		for fieldNum := 0; fieldNum < localType.NumField(); fieldNum++ {
			field := localType.Field(fieldNum)
			nextDefault, hasTag := field.Tag.Lookup(fmt.Sprintf("version[%d]", nextVersion))
			if !hasTag {
				continue
			}
			current := reflect.ValueOf(&newCfg).Elem().Field(fieldNum)
			previous := reflect.ValueOf(&previousDefaults).Elem().Field(fieldNum)
			if field.Name != "Version" && !current.Equal(previous) {
				continue
			}
			oldValue := current.Interface()
			if err = setFieldFromString(current, field.Name, nextDefault); err != nil {
				return
			}
			if field.Name != "Version" && oldValue != current.Interface() {
				migrations = append(migrations, MigrationResult{
					FieldName:  field.Name,
					OldVersion: nextVersion - 1,
					NewVersion: nextVersion,
					OldValue:   oldValue,
					NewValue:   current.Interface(),
				})
			}
		}
	}
	return
}

func getLatestConfigVersion() uint32 {
	versionField, found := reflect.TypeOf((*Local)(nil)).Elem().FieldByName("Version")
	if !found {
		return 0
	}
	version := uint32(0)
	for {
		_, hasTag := versionField.Tag.Lookup(fmt.Sprintf("version[%d]", version+1))
		if !hasTag {
			return version
		}
		version++
	}
}

// GetVersionedDefaultLocalConfig returns the default config for the given version.
func GetVersionedDefaultLocalConfig(version uint32) (local Local) {
	if version > 0 {
		local = GetVersionedDefaultLocalConfig(version - 1)
	}
	localType := reflect.TypeOf((*Local)(nil)).Elem()
	for fieldNum := 0; fieldNum < localType.NumField(); fieldNum++ {
		field := localType.Field(fieldNum)
		versionDefaultValue, hasTag := field.Tag.Lookup(fmt.Sprintf("version[%d]", version))
		if !hasTag {
			continue
		}
		err := setFieldFromString(reflect.ValueOf(&local).Elem().Field(fieldNum), field.Name, versionDefaultValue)
		if err != nil {
			panic(err)
		}
	}
	return
}

func setFieldFromString(v reflect.Value, name string, s string) error {
	switch v.Kind() {
	case reflect.Bool:
		if s == "" {
			v.SetBool(false)
			return nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		if s == "" {
			v.SetInt(0)
			return nil
		}
		i, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		if s == "" {
			v.SetUint(0)
			return nil
		}
		u, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		v.SetUint(u)
	case reflect.String:
		v.SetString(s)
	default:
		return fmt.Errorf("unsupported data type (%s) encountered when reflecting on config.Local datatype %s", v.Kind(), name)
	}
	return nil
}
