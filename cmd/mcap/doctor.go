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
	"fmt"
	"os"

	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/solarisdb/mcap/pkg/reader"
	"github.com/spf13/cobra"
)

func newDoctorCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor <file>",
		Short: "scan an MCAP file forward and report the problems found",
		Long: `Walks every record of the file with the checksum validation on and
reports the first structural problem: a bad magic, a truncated record, a
checksum mismatch or an oversized record. A healthy file ends with the
record counts per type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sr := reader.NewStreamReader(f, reader.StreamOptions{
				ValidateCRCs:    true,
				RecordSizeLimit: cfg.RecordSizeLimit,
			})
			counts := map[mcap.Opcode]int{}
			total := 0
			for sr.HasNext() {
				rec, _ := sr.Next()
				counts[rec.Op()]++
				total++
			}
			out := cmd.OutOrStdout()
			if err = sr.Err(); err != nil {
				fmt.Fprintf(out, "the scan stopped after %d records\n", total)
				return err
			}
			fmt.Fprintf(out, "%d records, no problems found\n", total)
			for op := mcap.OpHeader; op <= mcap.OpDataEnd; op++ {
				if counts[op] > 0 {
					fmt.Fprintf(out, "  %-16s %d\n", op, counts[op])
				}
			}
			return nil
		},
	}
}
