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

	"github.com/gobwas/glob"
	"github.com/solarisdb/mcap/pkg/reader"
	"github.com/spf13/cobra"
)

func newCatCmd(cfg *Config) *cobra.Command {
	var (
		topics    []string
		startTime uint64
		endTime   uint64
		reverse   bool
		fileOrder bool
		showData  bool
	)
	cmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "print the messages of an MCAP file",
		Long: `Prints the selected messages in the log-time order. The topic filter
accepts the glob patterns, e.g. --topics '/camera/*'; the patterns are
expanded against the channels recorded in the file summary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, mr, err := openReader(args[0], cfg)
			if err != nil {
				return err
			}
			defer mr.Close()

			opts := reader.GetDefaultIterOptions()
			opts.StartTime = startTime
			opts.EndTime = endTime
			opts.Reverse = reverse
			opts.LogTimeOrder = !fileOrder
			if len(topics) > 0 {
				if opts.Topics, err = expandTopics(r, topics); err != nil {
					return err
				}
				if len(opts.Topics) == 0 {
					return nil // nothing matches the patterns
				}
			}

			it, err := r.IterMessages(opts)
			if err != nil {
				return err
			}
			defer it.Close()
			out := cmd.OutOrStdout()
			for it.HasNext() {
				t, _ := it.Next()
				if showData {
					fmt.Fprintf(out, "%d %s [%d] %s\n", t.Message.LogTime, t.Channel.Topic, t.Message.Sequence, t.Message.Data)
				} else {
					fmt.Fprintf(out, "%d %s [%d] %d bytes\n", t.Message.LogTime, t.Channel.Topic, t.Message.Sequence, len(t.Message.Data))
				}
			}
			return it.Err()
		},
	}
	cmd.Flags().StringSliceVar(&topics, "topics", nil, "the topic names or glob patterns to keep")
	cmd.Flags().Uint64Var(&startTime, "start", 0, "drop the messages logged before the nanosecond timestamp")
	cmd.Flags().Uint64Var(&endTime, "end", 0, "drop the messages logged at or after the nanosecond timestamp")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "print in the descending log-time order")
	cmd.Flags().BoolVar(&fileOrder, "file-order", false, "print in the file order instead of the log-time one")
	cmd.Flags().BoolVar(&showData, "data", false, "print the raw message payloads")
	return cmd
}

// expandTopics resolves the glob patterns against the topics recorded in
// the file summary. A pattern which is not a valid glob makes it return an
// error.
func expandTopics(r *reader.SeekingReader, patterns []string) ([]string, error) {
	summary, err := r.GetSummary()
	if err != nil {
		return nil, err
	}
	if summary == nil {
		// no channel catalog to match against, keep the patterns as the topics
		return patterns, nil
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("could not compile the topic pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	var out []string
	seen := map[string]bool{}
	for _, ch := range summary.Channels {
		if seen[ch.Topic] {
			continue
		}
		for _, g := range globs {
			if g.Match(ch.Topic) {
				out = append(out, ch.Topic)
				seen[ch.Topic] = true
				break
			}
		}
	}
	return out, nil
}
