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
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/algorand/go-hashgraph/logging"
	"github.com/algorand/go-hashgraph/util/codecs"
)

// ConfigFilename is the name of the config.json file where we store per-node settings
const ConfigFilename = "config.json"

// LoadConfigFromDisk returns a Local config structure based on merging the defaults
// with settings loaded from the config file from the custom dir.  If the custom file
// cannot be loaded, the default config is returned (with the error from loading the
// custom file).
func LoadConfigFromDisk(custom string) (c Local, err error) {
	return loadConfigFromFile(filepath.Join(custom, ConfigFilename))
}

func loadConfigFromFile(configFile string) (c Local, err error) {
	c = defaultLocal
	c.Version = 0 // Reset to 0 so we get the version from the loaded file.
	c, err = mergeConfigFromFile(configFile, c)
	if err != nil {
		return
	}

	// Migrate in case defaults were changed
	// If a config file does not have version, it is assumed to be zero.
	var migrations []MigrationResult
	c, migrations, err = migrate(c)
	for _, m := range migrations {
		logging.Base().Infof("config: migrated %s from %v (v%d) to %v (v%d)", m.FieldName, m.OldValue, m.OldVersion, m.NewValue, m.NewVersion)
	}
	return
}

// GetDefaultLocal returns a copy of the current defaultLocal config
func GetDefaultLocal() Local {
	return defaultLocal
}

func mergeConfigFromFile(configpath string, source Local) (Local, error) {
	f, err := os.Open(configpath)
	if err != nil {
		return source, err
	}
	defer f.Close()

	err = loadConfig(f, &source)
	return source, err
}

func loadConfig(reader io.Reader, config *Local) error {
	dec := json.NewDecoder(reader)
	return dec.Decode(config)
}

// SaveToDisk writes the Local settings into a root/ConfigFilename file
func (cfg Local) SaveToDisk(root string) error {
	configpath := filepath.Join(root, ConfigFilename)
	filename := os.ExpandEnv(configpath)
	return cfg.SaveToFile(filename)
}

// SaveToFile saves the config to a specific filename, allowing overriding the default name
func (cfg Local) SaveToFile(filename string) error {
	return codecs.SaveNonDefaultValuesToFile(filename, cfg, defaultLocal, []string{"Version"}, true)
}

// ResolvePCESDirectory returns the PCES directory, relative paths being taken from root.
func (cfg Local) ResolvePCESDirectory(root string) string {
	if filepath.IsAbs(cfg.PCESDirectory) {
		return cfg.PCESDirectory
	}
	return filepath.Join(root, cfg.PCESDirectory)
}

// LoggingLevel maps BaseLoggerDebugLevel to a logging.Level.
func (cfg Local) LoggingLevel() logging.Level {
	if cfg.BaseLoggerDebugLevel > uint32(logging.Debug) {
		return logging.Debug
	}
	return logging.Level(cfg.BaseLoggerDebugLevel)
}
