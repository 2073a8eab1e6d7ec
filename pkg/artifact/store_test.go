package artifact

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	fs, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"inmemory":   NewInMemoryStore(),
		"filesystem": fs,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := s.Put(ctx, "run1", "build", "app.tar", strings.NewReader("binary content"))
			require.NoError(t, err)
			assert.Equal(t, "app.tar", a.Name)
			assert.Equal(t, "build", a.ProducerStageID)
			assert.Equal(t, int64(len("binary content")), a.Size)
			assert.NotEmpty(t, a.Checksum)

			got, rc, err := s.Get(ctx, "run1", "app.tar")
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, a.Checksum, got.Checksum)
			data, err := ioutil.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "binary content", string(data))
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Get(context.Background(), "run1", "ghost")
			require.Error(t, err)
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestStoreDiscard(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Put(ctx, "run1", "build", "app.tar", strings.NewReader("content"))
			require.NoError(t, err)
			_, err = s.Put(ctx, "run2", "build", "app.tar", strings.NewReader("content"))
			require.NoError(t, err)

			require.NoError(t, s.Discard(ctx, "run1"))

			_, _, err = s.Get(ctx, "run1", "app.tar")
			assert.True(t, IsNotFound(err))
			_, rc, err := s.Get(ctx, "run2", "app.tar")
			require.NoError(t, err)
			rc.Close()
		})
	}
}

func TestStoreOverwriteLastWins(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Put(ctx, "run1", "build", "app.tar", strings.NewReader("v1"))
			require.NoError(t, err)
			_, err = s.Put(ctx, "run1", "build", "app.tar", strings.NewReader("v2"))
			require.NoError(t, err)

			_, rc, err := s.Get(ctx, "run1", "app.tar")
			require.NoError(t, err)
			defer rc.Close()
			data, err := ioutil.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "v2", string(data))
		})
	}
}

func TestCorruptionDetected(t *testing.T) {
	root := t.TempDir()
	s, err := NewFilesystemStore(root)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Put(ctx, "run1", "build", "app.tar", strings.NewReader("pristine content"))
	require.NoError(t, err)

	// Flip a byte behind the store's back.
	path := filepath.Join(root, "run1", "app.tar")
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, ioutil.WriteFile(path, data, 0o644))

	_, rc, err := s.Get(ctx, "run1", "app.tar")
	require.NoError(t, err)
	defer rc.Close()
	_, err = ioutil.ReadAll(rc)
	require.Error(t, err)
	assert.True(t, IsCorruption(err))
}

func TestForStage(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	reach := func(consumer, producer string) bool {
		return consumer == "publish" && producer == "build"
	}

	_, err := ForStage(s, "run1", "build", reach).Put(ctx, "app.tar", strings.NewReader("content"))
	require.NoError(t, err)

	t.Run("producer_reads_own_artifact", func(t *testing.T) {
		_, rc, err := ForStage(s, "run1", "build", reach).Get(ctx, "app.tar")
		require.NoError(t, err)
		rc.Close()
	})

	t.Run("transitive_dependent_allowed", func(t *testing.T) {
		_, rc, err := ForStage(s, "run1", "publish", reach).Get(ctx, "app.tar")
		require.NoError(t, err)
		rc.Close()
	})

	t.Run("unrelated_stage_denied", func(t *testing.T) {
		_, _, err := ForStage(s, "run1", "lint", reach).Get(ctx, "app.tar")
		require.Error(t, err)
		assert.True(t, IsAccessDenied(err))
		denied := err.(AccessDeniedError)
		assert.Equal(t, "lint", denied.Consumer)
		assert.Equal(t, "build", denied.Producer)
	})
}
