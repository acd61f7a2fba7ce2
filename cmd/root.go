package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forcewatch/publish-cli/internal/config"
	"github.com/forcewatch/publish-cli/internal/pipeline"
	"github.com/forcewatch/publish-cli/internal/uploader"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "publish-cli",
	Short: "Draft publishing pipeline for police incident reports",
	Long:  "Scans drafts for media references, uploads them to Bunny and Cloudinary with library deduplication, extracts structured metadata via Claude, and writes validated content files.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// Exit codes by failure class, so wrapper scripts can tell a draft that
// needs editing apart from an infrastructure failure.
const (
	exitFailure  = 1
	exitDraft    = 2
	exitUpload   = 3
	exitConflict = 4
)

// exitCode is the single boundary mapping pipeline errors to process exit
// codes. Every stage failure propagates here unconverted.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		schemaErr   *pipeline.SchemaValidationError
		sentinelErr *pipeline.SentinelModelError
		parseErr    *pipeline.ParseError
		uploadErr   *uploader.Error
		conflict    *pipeline.WriteConflict
	)
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &sentinelErr), errors.As(err, &parseErr):
		return exitDraft
	case errors.As(err, &uploadErr):
		return exitUpload
	case errors.As(err, &conflict):
		return exitConflict
	}
	return exitFailure
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
