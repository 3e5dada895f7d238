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

func newAttachmentsCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "attachments <file>",
		Short: "list the attachments of an MCAP file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, mr, err := openReader(args[0], cfg)
			if err != nil {
				return err
			}
			defer mr.Close()
			it, err := r.IterAttachments()
			if err != nil {
				return err
			}
			defer it.Close()
			out := cmd.OutOrStdout()
			for it.HasNext() {
				att, _ := it.Next()
				fmt.Fprintf(out, "%s  %s  %d bytes  log_time=%d\n", att.Name, att.MediaType, len(att.Data), att.LogTime)
			}
			return it.Err()
		},
	}
}
