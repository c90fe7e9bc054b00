package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshotURL(t *testing.T) {
	cfg, err := parseSnapshotURL("memory://")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Type)

	cfg, err = parseSnapshotURL("file:///var/lib/registry")
	require.NoError(t, err)
	assert.Equal(t, SnapshotBackendConfig{Type: "fs", BaseDir: "/var/lib/registry"}, cfg)

	cfg, err = parseSnapshotURL("s3://backups?region=eu-west-1&endpoint=http://localhost:9000&prefix=registry/&path_style=true")
	require.NoError(t, err)
	assert.Equal(t, SnapshotBackendConfig{
		Type:         "s3",
		Bucket:       "backups",
		Prefix:       "registry/",
		Region:       "eu-west-1",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
	}, cfg)

	_, err = parseSnapshotURL("file://")
	assert.Error(t, err)
	_, err = parseSnapshotURL("s3://bucket?path_style=maybe")
	assert.Error(t, err)
	_, err = parseSnapshotURL("gs://bucket")
	assert.Error(t, err)
	_, err = parseSnapshotURL("s3://bucket?sse=DES")
	assert.Error(t, err)
	_, err = parseSnapshotURL("s3://bucket?sse=AES256&sse_kms_key_id=key-1")
	assert.Error(t, err)
}

func TestS3Config(t *testing.T) {
	backend, err := parseSnapshotURL("s3://backups?region=eu-west-1&sse=aws:kms&sse_kms_key_id=key-1")
	require.NoError(t, err)

	cfg := &ServerConfig{SnapshotAccessKeyID: "AKIA", SnapshotSecretAccessKey: "secret"}
	got := cfg.s3Config(backend)

	assert.Equal(t, "backups", got.Bucket)
	assert.Equal(t, "eu-west-1", got.Region)
	assert.Equal(t, "AKIA", got.AccessKeyID)
	assert.Equal(t, "secret", got.SecretAccessKey)
	assert.True(t, got.EnableSSE)
	assert.Equal(t, "aws:kms", got.SSEAlgorithm)
	assert.Equal(t, "key-1", got.SSEKMSKeyID)

	plain, err := parseSnapshotURL("s3://backups")
	require.NoError(t, err)
	assert.False(t, (&ServerConfig{}).s3Config(plain).EnableSSE)
}
