package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tendant/media-registry/pkg/registry/snapshot"
	fsstorage "github.com/tendant/media-registry/pkg/registry/snapshot/fs"
	memorystorage "github.com/tendant/media-registry/pkg/registry/snapshot/memory"
	s3storage "github.com/tendant/media-registry/pkg/registry/snapshot/s3"
)

// SnapshotBackendConfig is a parsed snapshot URL
type SnapshotBackendConfig struct {
	Type string // "memory", "fs", "s3"

	BaseDir string // fs

	Bucket       string // s3
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEAlgorithm string // "", "AES256" or "aws:kms"
	SSEKMSKeyID  string
}

// parseSnapshotURL parses memory://, file:///path and
// s3://bucket?region=...&endpoint=...&prefix=...&path_style=true&sse=aws:kms&sse_kms_key_id=...
func parseSnapshotURL(raw string) (SnapshotBackendConfig, error) {
	if raw == "memory" || raw == "memory://" {
		return SnapshotBackendConfig{Type: "memory"}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return SnapshotBackendConfig{}, fmt.Errorf("invalid SNAPSHOT_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return SnapshotBackendConfig{}, fmt.Errorf("filesystem path cannot be empty in SNAPSHOT_URL")
		}
		return SnapshotBackendConfig{Type: "fs", BaseDir: u.Path}, nil

	case "s3":
		if u.Host == "" {
			return SnapshotBackendConfig{}, fmt.Errorf("S3 bucket name cannot be empty in SNAPSHOT_URL")
		}
		q := u.Query()
		cfg := SnapshotBackendConfig{
			Type:     "s3",
			Bucket:   u.Host,
			Prefix:   q.Get("prefix"),
			Region:   q.Get("region"),
			Endpoint: q.Get("endpoint"),

			SSEAlgorithm: q.Get("sse"),
			SSEKMSKeyID:  q.Get("sse_kms_key_id"),
		}
		switch cfg.SSEAlgorithm {
		case "", "AES256", "aws:kms":
		default:
			return SnapshotBackendConfig{}, fmt.Errorf("invalid sse in SNAPSHOT_URL: %q (use 'AES256' or 'aws:kms')", cfg.SSEAlgorithm)
		}
		if cfg.SSEKMSKeyID != "" && cfg.SSEAlgorithm != "aws:kms" {
			return SnapshotBackendConfig{}, errors.New("sse_kms_key_id in SNAPSHOT_URL requires sse=aws:kms")
		}
		if v := q.Get("path_style"); v != "" {
			cfg.UsePathStyle, err = strconv.ParseBool(v)
			if err != nil {
				return SnapshotBackendConfig{}, fmt.Errorf("invalid path_style in SNAPSHOT_URL: %w", err)
			}
		}
		return cfg, nil
	}

	return SnapshotBackendConfig{}, fmt.Errorf("unsupported SNAPSHOT_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

// BuildSnapshotStore creates the blob store named by SnapshotURL.
// It returns nil when no snapshot URL is configured.
func (c *ServerConfig) BuildSnapshotStore(ctx context.Context) (snapshot.BlobStore, error) {
	if c.SnapshotURL == "" {
		return nil, nil
	}

	backend, err := parseSnapshotURL(c.SnapshotURL)
	if err != nil {
		return nil, err
	}

	switch backend.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		store, err := fsstorage.New(fsstorage.Config{BaseDir: backend.BaseDir})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := s3storage.New(ctx, c.s3Config(backend))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot backend type: %s", backend.Type)
	}
}

func (c *ServerConfig) s3Config(backend SnapshotBackendConfig) s3storage.Config {
	return s3storage.Config{
		Region:          backend.Region,
		Bucket:          backend.Bucket,
		Prefix:          backend.Prefix,
		AccessKeyID:     c.SnapshotAccessKeyID,
		SecretAccessKey: c.SnapshotSecretAccessKey,
		Endpoint:        backend.Endpoint,
		UsePathStyle:    backend.UsePathStyle,
		EnableSSE:       backend.SSEAlgorithm != "",
		SSEAlgorithm:    backend.SSEAlgorithm,
		SSEKMSKeyID:     backend.SSEKMSKeyID,
	}
}
