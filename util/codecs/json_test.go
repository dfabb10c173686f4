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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-hashgraph/test/partitiontest"
)

type testSettings struct {
	Version int
	Name    string
	Size    int64
	Enabled bool
	hidden  int
}

func TestIsDefaultValue(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := require.New(t)

	objectValues := map[string]interface{}{"a": 1, "b": "x"}
	defaultValues := map[string]interface{}{"a": 1, "b": "y"}
	a.True(isDefaultValue("a", objectValues, defaultValues))
	a.False(isDefaultValue("b", objectValues, defaultValues))
	a.False(isDefaultValue("c", objectValues, map[string]interface{}{"c": 1}))
	a.True(isDefaultValue("d", objectValues, defaultValues))
}

func TestSaveNonDefaultValuesToFile(t *testing.T) {
	partitiontest.PartitionTest(t)

	defaults := testSettings{Version: 3, Name: "n", Size: 10, Enabled: true, hidden: 1}
	current := defaults
	current.Size = 20
	current.hidden = 2

	filename := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, SaveNonDefaultValuesToFile(filename, current, defaults, []string{"Version"}, true))

	raw, err := os.ReadFile(filename)
	require.NoError(t, err)
	var written map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &written))
	require.Equal(t, map[string]interface{}{"Version": 3.0, "Size": 20.0}, written)

	loaded := defaults
	require.NoError(t, LoadObjectFromFile(filename, &loaded))
	require.Equal(t, current.Size, loaded.Size)
	require.Equal(t, defaults.Name, loaded.Name)
}

func TestSortedFieldNames(t *testing.T) {
	partitiontest.PartitionTest(t)

	names, err := SortedFieldNames(testSettings{})
	require.NoError(t, err)
	require.Equal(t, []string{"Enabled", "Name", "Size", "Version"}, names)

	_, err = SortedFieldNames(3)
	require.Error(t, err)
}
