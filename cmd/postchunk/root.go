package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tigerroll/postchunk/internal/app"
	"github.com/tigerroll/postchunk/internal/config"
	"github.com/tigerroll/postchunk/internal/job"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// errRunFailed is returned after a 500 response has already been printed.
var errRunFailed = errors.New("ETL run failed")

type rootOptions struct {
	configFile string
	envFile    string
}

// NewRootCmd builds the postchunk command tree.
func NewRootCmd(embedded config.EmbeddedConfig) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "postchunk",
		Short:         "Assemble retrieval chunks from posts and their comments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML or JSON config file (default $CONFIG_FILE)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file to load (default ./.env)")

	root.AddCommand(
		runCmd(embedded, opts),
		checkCmd(embedded, opts),
	)
	return root
}

func runCmd(embedded config.EmbeddedConfig, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one ETL invocation and print the response as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(embedded, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var resp job.Response
			err = app.Execute(cmd.Context(), cfg, log, func(ctx context.Context, etl *job.ETLJob) error {
				resp = etl.Run(ctx)
				return nil
			})
			if err != nil && resp.StatusCode == 0 {
				return err
			}
			if err != nil {
				log.Warnf("Shutdown after run: %v", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
			if !resp.OK() {
				return errRunFailed
			}
			return nil
		},
	}
}

func checkCmd(embedded config.EmbeddedConfig, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the source and destination tables exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(embedded, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var exists bool
			err = app.Execute(cmd.Context(), cfg, log, func(ctx context.Context, etl *job.ETLJob) error {
				var checkErr error
				exists, checkErr = etl.Check(ctx)
				return checkErr
			})
			if err != nil {
				return err
			}

			tables := cfg.TableNames()
			if !exists {
				fmt.Fprintf(cmd.OutOrStdout(), "missing: one of %s, %s, %s does not exist\n", tables.Posts, tables.Comments, tables.Chunks)
				return errRunFailed
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s, %s, %s exist\n", tables.Posts, tables.Comments, tables.Chunks)
			return nil
		},
	}
}

// setup loads and validates the configuration and builds the logger it asks for.
func setup(embedded config.EmbeddedConfig, opts *rootOptions, stderr io.Writer) (*config.Config, logger.Logger, error) {
	bootstrap := logger.New(logger.LevelInfo, stderr)
	cfg, err := config.Load(config.LoadOptions{
		Embedded:   embedded,
		ConfigFile: opts.configFile,
		EnvFile:    opts.envFile,
	}, bootstrap)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log := logger.NewFromString(cfg.System.Logging.Level, stderr)
	log.Infof("Configuration: chunk_size=%d, batch_commit_size=%d, database=%s",
		cfg.Processing.ChunkSize, cfg.Processing.BatchCommitSize, cfg.Database)
	return cfg, log, nil
}
