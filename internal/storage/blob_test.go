package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocalStore(t *testing.T, baseURL string) (*RcloneStore, string) {
	t.Helper()
	root := t.TempDir()

	store, err := NewRcloneStore(context.Background(), &config.StorageConfig{
		Backend:       "local",
		LocalRoot:     root,
		PublicBaseURL: baseURL,
		LinkExpiry:    15 * time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)

	return store, root
}

func TestRcloneStore_PutLocal(t *testing.T) {
	store, root := newLocalStore(t, "https://storage.googleapis.com/firmware-bucket/")

	link, err := store.Put(context.Background(), "node-gateway/gateway_v2.3.gz", []byte("compressed"))
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/firmware-bucket/node-gateway/gateway_v2.3.gz", link)

	data, err := os.ReadFile(filepath.Join(root, "node-gateway", "gateway_v2.3.gz"))
	require.NoError(t, err)
	assert.Equal(t, []byte("compressed"), data)
}

func TestRcloneStore_LinkWithoutBaseURL(t *testing.T) {
	store, _ := newLocalStore(t, "")

	_, err := store.Link(context.Background(), "node-a/a_v1.gz")
	assert.ErrorIs(t, err, ErrLinkUnsupported)
}

func TestNewRcloneStore_InvalidConfig(t *testing.T) {
	_, err := NewRcloneStore(context.Background(), &config.StorageConfig{Backend: "ftp"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrStoreConfig)

	_, err = NewRcloneStore(context.Background(), &config.StorageConfig{Backend: "local"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInitLocalFs)

	_, err = NewRcloneStore(context.Background(), &config.StorageConfig{Backend: "s3"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInitS3Fs)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"http://localhost:5050/files", "node-a/a_v1.gz", "http://localhost:5050/files/node-a/a_v1.gz"},
		{"https://cdn.example.com", "node-a/a_v1.gz", "https://cdn.example.com/node-a/a_v1.gz"},
		{"https://cdn.example.com/fw", "node-a/a b_v1.gz", "https://cdn.example.com/fw/node-a/a%20b_v1.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := JoinURL(tt.base, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
