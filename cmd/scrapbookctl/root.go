package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bassista/go_scrapbook/internal/config"
	"github.com/bassista/go_scrapbook/internal/logger"
	"github.com/bassista/go_scrapbook/internal/repository"
	"github.com/bassista/go_scrapbook/internal/store"
)

type rootOptions struct {
	configDir string
	verbose   bool
	noColor   bool
}

// newRootCmd builds the scrapbookctl command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "scrapbookctl",
		Short: "Inspect and edit a scrapbook document store",
		Long: `scrapbookctl reads and writes the documents of a scrapbook store using the
same configuration as the server. It can also run the remote sync by hand
and manage the narration audio cache.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Logger.SetOutput(cmd.ErrOrStderr())
			if opts.noColor || cmd.OutOrStdout() != os.Stdout {
				color.NoColor = true
			}
			if opts.verbose {
				logger.Logger.SetLevel(logrus.DebugLevel)
			} else {
				logger.Logger.SetLevel(logrus.WarnLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configDir, "config", "c", "./config", "directory containing config.yaml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newKeysCmd(opts),
		newGetCmd(opts),
		newPutCmd(opts),
		newWatchCmd(opts),
		newPullCmd(opts),
		newPushCmd(opts),
		newAudioCmd(opts),
	)
	return cmd
}

// session is an opened store plus the configuration it was opened with.
type session struct {
	cfg   *config.Config
	repo  repository.Repository
	store *store.Store
}

func openSession(opts *rootOptions) (*session, error) {
	cfg, err := config.LoadConfig(opts.configDir)
	if err != nil {
		return nil, err
	}
	repo, err := repository.NewRepositoryFromConfig(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("cannot open store backend: %w", err)
	}
	return &session{
		cfg:   cfg,
		repo:  repo,
		store: store.New(repo, store.WithNamespace(cfg.Store.Namespace)),
	}, nil
}

func (s *session) Close() {
	if err := s.repo.Close(); err != nil {
		logger.WithComponent("scrapbookctl").Warnf("cannot close store backend: %v", err)
	}
}

func withSession(opts *rootOptions, fn func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(opts)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd.Context(), cmd, s, args)
	}
}
