package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/upload"
)

var (
	uploadMethod string
	uploadRunDir string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a run directory to remote storage",
	Long:  `Upload a finished local run directory to S3-compatible storage using the config file settings.`,
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadMethod, "method", "s3",
		"Upload method (currently only \"s3\")")
	uploadCmd.Flags().StringVar(&uploadRunDir, "run-dir", "",
		"Path to the run directory to upload")

	_ = uploadCmd.MarkFlagRequired("run-dir")
}

func runUpload(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	if uploadMethod != "s3" {
		return fmt.Errorf("unsupported method %q (only \"s3\" is supported)", uploadMethod)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Upload == nil {
		return fmt.Errorf("upload section is required in config")
	}

	uploader, err := upload.NewS3Uploader(log, cfg.Upload)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	log.WithField("dir", uploadRunDir).Info("Uploading run")

	if err := uploader.Upload(ctx, uploadRunDir); err != nil {
		return fmt.Errorf("uploading run: %w", err)
	}

	log.Info("Upload completed successfully")

	return nil
}
