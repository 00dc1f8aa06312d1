package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"account-portal/internal/backup"
	"account-portal/internal/config"
	"account-portal/internal/storage"
)

// NewBackupDBCmd creates the backup-db subcommand.
func NewBackupDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup-db",
		Short: "Upload a snapshot of the sqlite database to S3",
		RunE:  runBackupDB,
	}
	cmd.Flags().Bool("list", false, "list existing backups instead of taking one")
	return cmd
}

func runBackupDB(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Backup.Bucket == "" {
		return oops.Code("CONFIG_INVALID").Errorf("backup bucket is required")
	}
	ctx := cmd.Context()

	store, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	backupCfg := backup.Config{
		Bucket:    cfg.Backup.Bucket,
		KeyPrefix: cfg.Backup.KeyPrefix,
		Logger:    logger,
	}

	list, _ := cmd.Flags().GetBool("list")
	if list {
		objects, err := backup.NewRunner(backupCfg, nil, store).List(ctx)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			modified := ""
			if obj.LastModified != nil {
				modified = obj.LastModified.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-60s %12d %s\n", obj.Key, obj.Size, modified)
		}
		return nil
	}

	if cfg.Database.Driver != config.DriverSQLite {
		return oops.Code("CONFIG_INVALID").With("driver", cfg.Database.Driver).
			Errorf("backup-db only supports the sqlite driver")
	}
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	location, err := backup.NewRunner(backupCfg, st.snapshot, store).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), location)
	return nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Backup.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Backup.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Backup.Bucket, cfg.Backup.Region)
	return storage.NewS3Service(client), nil
}
