package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bassista/go_scrapbook/internal/audiocache"
)

func newAudioCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Manage the narration audio cache",
	}
	cmd.AddCommand(newAudioStatsCmd(opts), newAudioClearCmd(opts))
	return cmd
}

func newAudioStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
			stats := audiocache.New(s.store).Stats(ctx)
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files: %d\nsize: %s MB\n", stats.TotalFiles, stats.TotalSizeMB)
			for _, f := range stats.Files {
				fmt.Fprintf(out, "  %s\t%d bytes\t%s\n", f.ID, f.Size, f.Timestamp.Format("2006-01-02 15:04:05"))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newAudioClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [subject]",
		Short: "Drop cached audio for one subject, or for all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			cache := audiocache.New(s.store)
			if len(args) == 1 {
				if !cache.ClearForSubject(ctx, args[0]) {
					return fmt.Errorf("cannot clear audio for %q", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared audio for %s\n", args[0])
				return nil
			}
			if !cache.ClearAll(ctx) {
				return errors.New("cannot clear audio cache")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared audio cache")
			return nil
		}),
	}
}
