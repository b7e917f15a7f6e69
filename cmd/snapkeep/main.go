package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapkeep/snapkeep/internal/config"
	"github.com/snapkeep/snapkeep/internal/snapshot"
	"github.com/snapkeep/snapkeep/internal/storage"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "snapkeep",
		Short:   "Snapshot backups of local trees to S3, with retention",
		Version: version,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the config file")

	rootCmd.AddCommand(configureCmd(&configPath))
	rootCmd.AddCommand(routineCmd(&configPath))
	rootCmd.AddCommand(strategyCmd(&configPath))
	rootCmd.AddCommand(backupCmd(&configPath))
	rootCmd.AddCommand(restoreCmd(&configPath))
	rootCmd.AddCommand(retentionCmd(&configPath))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

type storeFlags struct {
	region    string
	endpoint  string
	accessKey string
	secretKey string
	timeout   time.Duration
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.region, "region", "", "AWS region")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "S3 endpoint URL (for MinIO-compatible stores)")
	cmd.Flags().StringVar(&f.accessKey, "access-key", "", "AWS Access Key ID (default: credential chain)")
	cmd.Flags().StringVar(&f.secretKey, "secret-key", "", "AWS Secret Access Key")
	cmd.Flags().DurationVar(&f.timeout, "request-timeout", 60*time.Second, "Timeout applied to each store request")
}

// newStore builds the retrying, per-request-timeout store stack against
// the configured bucket.
func newStore(ctx context.Context, cfg *config.Config, f *storeFlags) (storage.Store, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("no bucket configured: run `snapkeep configure --bucket <name>` first")
	}

	s3Store, err := storage.NewS3Store(ctx, storage.Options{
		Bucket:    cfg.BucketName,
		Profile:   cfg.AWSProfile,
		Region:    f.region,
		Endpoint:  f.endpoint,
		AccessKey: f.accessKey,
		SecretKey: f.secretKey,
	})
	if err != nil {
		return nil, err
	}

	var store storage.Store = storage.NewTimeoutStore(s3Store, f.timeout)
	return storage.NewRetryingStore(store, storage.DefaultRetryConfig()), nil
}

func configureCmd(configPath *string) *cobra.Command {
	var profile, bucket string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Set the AWS profile and bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if profile != "" {
				cfg.AWSProfile = profile
			}
			if bucket != "" {
				cfg.BucketName = bucket
			}
			if err := config.Save(*configPath, cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration saved: profile=%s bucket=%s\n", cfg.AWSProfile, cfg.BucketName)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile name")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket name")
	return cmd
}

func routineCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routine",
		Short: "Manage backup routines",
	}
	cmd.AddCommand(routineAddCmd(configPath))
	cmd.AddCommand(routineListCmd(configPath))
	return cmd
}

func routineAddCmd(configPath *string) *cobra.Command {
	var r config.Routine

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a backup routine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			r.SourcePath = config.ExpandPath(r.SourcePath)
			cfg.Routines = append(cfg.Routines, r)
			if err := config.Save(*configPath, cfg); err != nil {
				return err
			}
			fmt.Printf("Routine %q added.\n", r.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&r.Name, "name", "", "Routine name (e.g. Daily)")
	cmd.Flags().StringVar(&r.SourcePath, "source", "", "Local path to back up")
	cmd.Flags().StringVar(&r.S3Prefix, "prefix", "", "S3 prefix (e.g. backups/my-mac)")
	cmd.Flags().StringVar(&r.Frequency, "frequency", "", "Descriptive frequency label")
	cmd.Flags().IntVar(&r.RetentionCount, "retention", 7, "How many snapshots to keep")
	cmd.Flags().StringVar(&r.Note, "note", "", "Optional note")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("prefix")
	return cmd
}

func routineListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured routines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if len(cfg.Routines) == 0 {
				fmt.Println("No routines configured.")
				return nil
			}
			for i, r := range cfg.Routines {
				fmt.Printf("%d) %s | source=%s | prefix=%s | frequency=%s | keep=%d\n",
					i+1, r.Name, r.SourcePath, r.S3Prefix, r.Frequency, r.RetentionCount)
			}
			return nil
		},
	}
}

func strategyCmd(configPath *string) *cobra.Command {
	var source, basePrefix string

	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Create the default Monthly/Weekly/Daily routine set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cfg.Routines = append(cfg.Routines, config.DefaultStrategy(config.ExpandPath(source), basePrefix)...)
			if err := config.Save(*configPath, cfg); err != nil {
				return err
			}
			fmt.Println("Default strategy routines created.")
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Local path to back up")
	cmd.Flags().StringVar(&basePrefix, "base-prefix", "backups/default", "Base S3 prefix")
	cmd.MarkFlagRequired("source")
	return cmd
}

func backupCmd(configPath *string) *cobra.Command {
	var flags storeFlags
	var sourceOverride string
	var workers int

	cmd := &cobra.Command{
		Use:   "backup <routine-name>",
		Short: "Run a backup routine now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			routine, err := cfg.FindRoutine(args[0])
			if err != nil {
				return err
			}
			store, err := newStore(cmd.Context(), cfg, &flags)
			if err != nil {
				return err
			}

			logger := newLogger()
			writer := &snapshot.Writer{
				Store:     store,
				Retention: &snapshot.Manager{Store: store, Logger: logger},
				Workers:   workers,
				Logger:    logger,
			}

			report, err := writer.Run(cmd.Context(), routine, config.ExpandPath(sourceOverride))
			if err != nil {
				return err
			}

			fmt.Printf("Backup of %q finished: %d uploaded, %d failed (snapshot %s)\n",
				routine.Name, report.Succeeded, len(report.Failed), report.SnapshotPrefix)
			if !report.OK() {
				return fmt.Errorf("backup incomplete: %d of %d files failed", len(report.Failed), report.Attempted)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&sourceOverride, "source", "", "Override the routine's source path for this run")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent uploads (default 8)")
	return cmd
}

func restoreCmd(configPath *string) *cobra.Command {
	var flags storeFlags
	var workers int

	cmd := &cobra.Command{
		Use:   "restore <prefix> <destination>",
		Short: "Restore everything under a snapshot or routine prefix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := newStore(cmd.Context(), cfg, &flags)
			if err != nil {
				return err
			}

			reader := &snapshot.Reader{Store: store, Workers: workers, Logger: newLogger()}
			report, err := reader.Restore(cmd.Context(), args[0], config.ExpandPath(args[1]))
			if err != nil {
				return err
			}

			fmt.Printf("Restore finished: %d restored, %d failed\n", report.Succeeded, len(report.Failed))
			for _, w := range report.Warnings {
				fmt.Println("  warning:", w)
			}
			if !report.OK() {
				return fmt.Errorf("restore incomplete: %d of %d files failed", len(report.Failed), report.Attempted)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent downloads (default 8)")
	return cmd
}

func retentionCmd(configPath *string) *cobra.Command {
	var flags storeFlags

	cmd := &cobra.Command{
		Use:   "retention <routine-name>",
		Short: "Prune snapshots beyond the routine's retention count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			routine, err := cfg.FindRoutine(args[0])
			if err != nil {
				return err
			}
			store, err := newStore(cmd.Context(), cfg, &flags)
			if err != nil {
				return err
			}

			manager := &snapshot.Manager{Store: store, Logger: newLogger()}
			report, err := manager.Apply(cmd.Context(), routine)
			if err != nil {
				return err
			}

			fmt.Printf("Retention for %q: kept %d, deleted %d, warnings %d\n",
				routine.Name, len(report.Kept), len(report.Deleted), len(report.Warnings))
			for _, w := range report.Warnings {
				fmt.Println("  warning:", w)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
