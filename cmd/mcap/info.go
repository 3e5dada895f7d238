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
	"sort"
	"time"

	"github.com/solarisdb/mcap/pkg/mcap"
	"github.com/spf13/cobra"
)

func newInfoCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "print the summary of an MCAP file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, mr, err := openReader(args[0], cfg)
			if err != nil {
				return err
			}
			defer mr.Close()

			hdr, err := r.GetHeader()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "library:   %s\n", hdr.Library)
			fmt.Fprintf(out, "profile:   %s\n", hdr.Profile)

			summary, err := r.GetSummary()
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Fprintln(out, "the file carries no summary section")
				return nil
			}
			if st := summary.Statistics; st != nil {
				fmt.Fprintf(out, "messages:  %d\n", st.MessageCount)
				fmt.Fprintf(out, "chunks:    %d\n", st.ChunkCount)
				fmt.Fprintf(out, "start:     %s\n", formatTime(st.MessageStartTime))
				fmt.Fprintf(out, "end:       %s\n", formatTime(st.MessageEndTime))
				fmt.Fprintf(out, "attachments: %d, metadata: %d\n", st.AttachmentCount, st.MetadataCount)
			}
			fmt.Fprintf(out, "channels:  %d\n", len(summary.Channels))
			for _, ch := range sortedChannels(summary) {
				count := uint64(0)
				if summary.Statistics != nil {
					count = summary.Statistics.ChannelMessageCounts[ch.ID]
				}
				fmt.Fprintf(out, "  (%d) %s  %d msgs  [%s]\n", ch.ID, ch.Topic, count, ch.MessageEncoding)
			}
			return nil
		},
	}
}

func sortedChannels(summary *mcap.Summary) []*mcap.Channel {
	chans := make([]*mcap.Channel, 0, len(summary.Channels))
	for _, ch := range summary.Channels {
		chans = append(chans, ch)
	}
	sort.Slice(chans, func(i, j int) bool { return chans[i].ID < chans[j].ID })
	return chans
}

func formatTime(ns uint64) string {
	return fmt.Sprintf("%d (%s)", ns, time.Unix(0, int64(ns)).UTC().Format(time.RFC3339Nano))
}
