package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGet(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key := "appeals/2025/01/abc.html"
	require.NoError(t, s.Put(context.Background(), key, bytes.NewBufferString("<p>hi</p>"), "text/html"))

	rc, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(body))
}

func TestLocalStoreGetMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreKeepsKeysInsideRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "../../escape.txt", bytes.NewBufferString("x"), "text/plain"))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "", bytes.NewBufferString("x"), "text/plain"))
}

func TestCheckHealth(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	assert.True(t, CheckHealth(context.Background(), s).Healthy)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"local ok", Config{Backend: BackendLocal, LocalRoot: "/tmp"}, false},
		{"local no root", Config{Backend: BackendLocal}, true},
		{"s3 ok", Config{Backend: BackendS3, AccessKeyID: "a", SecretAccessKey: "b", BucketName: "c"}, false},
		{"s3 no bucket", Config{Backend: BackendS3, AccessKeyID: "a", SecretAccessKey: "b"}, true},
		{"unknown", Config{Backend: "ftp"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "appeals/2025/03/u-1.html", ObjectKey("appeals", "u-1", ".html", at))
}
