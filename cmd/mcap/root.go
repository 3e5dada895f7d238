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
package main

import (
	"github.com/solarisdb/mcap/golibs/config"
	"github.com/solarisdb/mcap/golibs/files"
	"github.com/solarisdb/mcap/golibs/logging"
	"github.com/solarisdb/mcap/pkg/reader"
	"github.com/spf13/cobra"
)

// Config is the tool configuration, loadable from a YAML or JSON file and
// the MCAP_* environment variables
type Config struct {
	// ValidateCRCs verifies the chunk and data-section checksums while reading
	ValidateCRCs bool `json:"validateCRCs"`
	// RecordSizeLimit caps the declared size of a single record, 0 keeps the default
	RecordSizeLimit uint64 `json:"recordSizeLimit"`
	// LogLevel is one of error, warn, info, debug, trace
	LogLevel string `json:"logLevel"`
}

var logLevels = map[string]logging.Level{
	"error": logging.ERROR,
	"warn":  logging.WARN,
	"info":  logging.INFO,
	"debug": logging.DEBUG,
	"trace": logging.TRACE,
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cfg := Config{LogLevel: "warn"}

	cmd := &cobra.Command{
		Use:           "mcap",
		Short:         "inspect MCAP container files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e := config.NewEnricher(cfg)
			if err := e.LoadFromFile(cfgFile); err != nil {
				return err
			}
			if err := e.ApplyEnvVariables("MCAP", "_"); err != nil {
				return err
			}
			cfg = e.Value()
			if lvl, ok := logLevels[cfg.LogLevel]; ok {
				logging.SetLevel(lvl)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "the tool configuration file (.yaml or .json)")
	cmd.PersistentFlags().BoolVar(&cfg.ValidateCRCs, "validate-crcs", false, "verify the checksums while reading")

	cmd.AddCommand(newInfoCmd(&cfg))
	cmd.AddCommand(newCatCmd(&cfg))
	cmd.AddCommand(newAttachmentsCmd(&cfg))
	cmd.AddCommand(newMetadataCmd(&cfg))
	cmd.AddCommand(newDoctorCmd(&cfg))
	return cmd
}

// openReader maps the file into the memory and returns the seeking reader
// over it
func openReader(path string, cfg *Config) (*reader.SeekingReader, *files.MMReader, error) {
	mr, err := files.OpenMMReader(path)
	if err != nil {
		return nil, nil, err
	}
	r := reader.NewSeekingReader(mr, reader.Options{
		ValidateCRCs:    cfg.ValidateCRCs,
		RecordSizeLimit: cfg.RecordSizeLimit,
	})
	return r, mr, nil
}
