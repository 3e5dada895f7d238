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

	"github.com/spf13/cobra"
)

func newMetadataCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <file>",
		Short: "list the metadata records of an MCAP file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, mr, err := openReader(args[0], cfg)
			if err != nil {
				return err
			}
			defer mr.Close()
			it, err := r.IterMetadata()
			if err != nil {
				return err
			}
			defer it.Close()
			out := cmd.OutOrStdout()
			for it.HasNext() {
				md, _ := it.Next()
				fmt.Fprintf(out, "%s\n", md.Name)
				for _, p := range md.Metadata {
					fmt.Fprintf(out, "  %s: %s\n", p.Key, p.Value)
				}
			}
			return it.Err()
		},
	}
}
