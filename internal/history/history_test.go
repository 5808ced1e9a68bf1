package history

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "data", "history.json"), nil)
	require.NoError(t, err)
	return l
}

func TestLoad_MissingFile(t *testing.T) {
	l := openLog(t)

	entries, err := l.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}

func TestLoad_CorruptFile(t *testing.T) {
	l := openLog(t)
	require.NoError(t, os.WriteFile(l.Path(), []byte("{not json"), 0o644))

	entries, err := l.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = l.Record(ActionCompressImage, "photo.png", "compressed_x.jpg")
	require.NoError(t, err)

	entries, err = l.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecord_NewestFirst(t *testing.T) {
	l := openLog(t)
	l.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	first, err := l.Record(ActionCompressImage, "a.png", "compressed_a.jpg")
	require.NoError(t, err)
	second, err := l.Record(ActionIncreaseSize, "b.png", "resized_b.jpg")
	require.NoError(t, err)

	entries, err := l.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second, entries[0])
	assert.Equal(t, first, entries[1])
	assert.Equal(t, "2024-03-09 14:05:07", entries[0].Timestamp)
	assert.Equal(t, "b.png", entries[0].OriginalName)
	assert.Equal(t, "resized_b.jpg", entries[0].Filename)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRecord_JSONShape(t *testing.T) {
	l := openLog(t)
	_, err := l.Record(ActionCompressImage, "a.png", "compressed_a.jpg")
	require.NoError(t, err)

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	for _, key := range []string{`"id"`, `"timestamp"`, `"action"`, `"original_name"`, `"filename"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestRecord_Concurrent(t *testing.T) {
	l := openLog(t)
	other, err := Open(l.Path(), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.Record(ActionCompressImage, "a.png", "a.jpg")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := other.Record(ActionIncreaseSize, "b.png", "b.jpg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := l.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestStats(t *testing.T) {
	l := openLog(t)
	_, err := l.Record(ActionCompressImage, "a.png", "a.jpg")
	require.NoError(t, err)

	stats, err := l.Stats(func() (int, int64, error) { return 3, 2 * 1024 * 1024, nil })
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalConversions: 1, FileCount: 3, StorageBytes: 2 * 1024 * 1024}, stats)
	assert.Equal(t, "2.00 MB", FormatMB(stats.StorageBytes))

	stats, err = l.Stats(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalConversions)
}
