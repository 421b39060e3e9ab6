package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bassista/go_scrapbook/internal/remotesync"
)

var errSyncDisabled = errors.New("remote sync is not configured (set sync.enabled and sync.primary_url)")

func newAdapter(s *session) (*remotesync.Adapter, error) {
	if !s.cfg.Sync.Enabled {
		return nil, errSyncDisabled
	}
	return remotesync.New(s.store, s.cfg.Sync), nil
}

func newPullCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Import every document from the remote endpoint",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
			adapter, err := newAdapter(s)
			if err != nil {
				return err
			}
			n := adapter.PullAll(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents\n", n)
			return nil
		}),
	}
}

func newPushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Send every local document to the remote endpoint",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
			adapter, err := newAdapter(s)
			if err != nil {
				return err
			}
			if !adapter.PushAll(ctx) {
				return errors.New("push failed on every endpoint")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pushed")
			return nil
		}),
	}
}
