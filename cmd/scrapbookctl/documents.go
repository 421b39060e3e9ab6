package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bassista/go_scrapbook/internal/binding"
	"github.com/bassista/go_scrapbook/internal/repository"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored document paths",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, _ []string) error {
			keys, err := s.store.Keys(ctx)
			if err != nil {
				return fmt.Errorf("cannot list documents: %w", err)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}),
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var withMeta bool

	cmd := &cobra.Command{
		Use:   "get [path]",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			env, err := s.store.LoadEnvelope(ctx, args[0])
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("document %q not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("cannot read %q: %w", args[0], err)
			}

			var out any = env.Value
			if withMeta {
				out = env
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(out)
		}),
	}
	cmd.Flags().BoolVar(&withMeta, "meta", false, "Print the stored envelope with lastModified")
	return cmd
}

func newPutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put [path] [json]",
		Short: "Replace a document with a JSON value",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			path, value := args[0], []byte(args[1])
			if !json.Valid(value) {
				return fmt.Errorf("value for %q is not valid JSON", path)
			}
			if err := repository.ValidateKey(path); err != nil {
				return err
			}

			b := binding.Bind[json.RawMessage](ctx, s.store, path, nil, binding.WithDebounce(s.cfg.Store.Debounce))
			select {
			case <-b.Ready():
			case <-ctx.Done():
				return ctx.Err()
			}
			b.Set(json.RawMessage(value))
			if !b.Close(ctx) {
				return fmt.Errorf("cannot save %q", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		}),
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Print a document every time it changes",
		Long: `watch binds to a document and prints its value whenever another process
or context writes it. It runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: withSession(opts, func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			if err := s.store.Start(ctx); err != nil {
				return fmt.Errorf("cannot watch store backend: %w", err)
			}

			var mu sync.Mutex
			show := func(st binding.State[json.RawMessage]) {
				var buf bytes.Buffer
				if len(st.Value) == 0 || json.Compact(&buf, st.Value) != nil {
					buf.Reset()
					buf.WriteString("null")
				}
				mu.Lock()
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", statusLabel(st.Status), buf.String())
				mu.Unlock()
			}

			b := binding.Bind[json.RawMessage](ctx, s.store, args[0], nil, binding.WithDebounce(s.cfg.Store.Debounce))
			defer b.Close(context.WithoutCancel(ctx))

			select {
			case <-b.Ready():
			case <-ctx.Done():
				return nil
			}
			show(b.State())
			cancel := b.Watch(func(st binding.State[json.RawMessage]) {
				if st.Status == binding.StatusSaved {
					show(st)
				}
			})
			defer cancel()

			<-ctx.Done()
			return nil
		}),
	}
}

func statusLabel(s binding.Status) string {
	label := "[" + string(s) + "]"
	switch s {
	case binding.StatusSaved:
		return color.GreenString("%s", label)
	case binding.StatusError:
		return color.RedString("%s", label)
	case binding.StatusSaving, binding.StatusLoading:
		return color.YellowString("%s", label)
	default:
		return label
	}
}
