package storage

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/abduss/stopsurvey/internal/config"
)

func googleOptions(cfg config.GoogleConfig, scopes ...string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(scopes...)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// NewDriveService builds a Drive client from the service account file, or from
// application default credentials when none is configured.
func NewDriveService(ctx context.Context, cfg config.GoogleConfig) (*drive.Service, error) {
	if cfg.DriveFolderID == "" {
		return nil, fmt.Errorf("drive backend needs STOPSURVEY_DRIVE_FOLDER_ID")
	}
	svc, err := drive.NewService(ctx, googleOptions(cfg, drive.DriveScope)...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// NewSheetsService builds a Sheets client for the ledger spreadsheet.
func NewSheetsService(ctx context.Context, cfg config.GoogleConfig) (*sheets.Service, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets ledger needs STOPSURVEY_SPREADSHEET_ID")
	}
	svc, err := sheets.NewService(ctx, googleOptions(cfg, sheets.SpreadsheetsScope)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// NewGCSClient builds a Cloud Storage client.
func NewGCSClient(ctx context.Context, gcfg config.GoogleConfig, cfg config.GCSConfig) (*gcs.Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs backend needs STOPSURVEY_GCS_BUCKET")
	}
	client, err := gcs.NewClient(ctx, googleOptions(gcfg, gcs.ScopeReadWrite)...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return client, nil
}
