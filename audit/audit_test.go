package audit_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prior-it/tweb/audit"
	"github.com/prior-it/tweb/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry(t *testing.T) {
	at := time.Date(2024, 5, 1, 23, 30, 0, 0, time.FixedZone("CEST", -2*60*60))

	assert.Equal(t, "## 2024-05-02\n    127.0.0.1\n\n", audit.Entry(net.ParseIP("127.0.0.1"), at))
	assert.Equal(t, "## 2024-05-02\n    ::1\n\n", audit.Entry(net.ParseIP("::1"), at))
}

func TestDefaultPath(t *testing.T) {
	t.Run("ok: XDG_DATA_HOME", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_DATA_HOME", dir)

		path, err := audit.DefaultPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "tweb", "log.md"), path)
	})

	t.Run("ok: home directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", home)

		path, err := audit.DefaultPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".local", "share", "tweb", "log.md"), path)
	})
}

func TestFileSink(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	t.Run("ok: records are appended", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "log.md")
		sink, err := audit.NewFileSink(path, 1)
		require.NoError(t, err)

		require.NoError(t, sink.Record(ctx, net.ParseIP("10.0.0.1"), at))
		require.NoError(t, sink.Record(ctx, net.ParseIP("10.0.0.2"), at.Add(24*time.Hour)))
		require.NoError(t, sink.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "## 2024-01-02\n    10.0.0.1\n\n## 2024-01-03\n    10.0.0.2\n\n", string(data))
	})

	t.Run("ok: existing log is kept", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "log.md")
		require.NoError(t, os.WriteFile(path, []byte("## 2023-12-31\n    10.0.0.9\n\n"), 0o600))

		sink, err := audit.NewFileSink(path, 1)
		require.NoError(t, err)
		require.NoError(t, sink.Record(ctx, net.ParseIP("10.0.0.1"), at))
		require.NoError(t, sink.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "## 2023-12-31\n    10.0.0.9\n\n## 2024-01-02\n    10.0.0.1\n\n", string(data))
	})

	t.Run("ok: concurrent records do not interleave", func(t *testing.T) {
		const writers = 20
		path := filepath.Join(t.TempDir(), "log.md")
		sink, err := audit.NewFileSink(path, 1)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, sink.Record(ctx, net.ParseIP("192.168.1.1"), at))
			}()
		}
		wg.Wait()
		require.NoError(t, sink.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		entry := audit.Entry(net.ParseIP("192.168.1.1"), at)
		assert.Len(t, data, writers*len(entry))
		for i := range writers {
			assert.Equal(t, entry, string(data[i*len(entry):(i+1)*len(entry)]))
		}
	})

	t.Run("ok: New selects the file driver", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.md")
		sink, err := audit.New(ctx, config.AuditConfig{Driver: config.AuditDriverFile, Path: path})
		require.NoError(t, err)
		defer sink.Close()

		fileSink, ok := sink.(*audit.FileSink)
		require.True(t, ok)
		assert.Equal(t, path, fileSink.Path())
	})

	t.Run("err: unknown driver", func(t *testing.T) {
		_, err := audit.New(ctx, config.AuditConfig{Driver: "carrier-pigeon"})
		assert.ErrorContains(t, err, "unknown audit driver")
	})
}
