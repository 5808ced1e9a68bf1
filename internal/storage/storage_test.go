package storage

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	name, err := s.Save("compressed", ".jpg", []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^compressed_[0-9a-f-]{36}\.jpg$`), name)

	f, err := s.Open(name)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, int64(10), f.Size)
	assert.NotEmpty(t, f.ETag)
}

func TestSave_UniqueNames(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	a, err := s.Save("resized", ".jpg", []byte("a"))
	require.NoError(t, err)
	b, err := s.Save("resized", ".jpg", []byte("a"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_ETagTracksContent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	a, _ := s.Save("x", ".jpg", []byte("same"))
	b, _ := s.Save("x", ".jpg", []byte("same"))
	c, _ := s.Save("x", ".jpg", []byte("different"))

	fa, err := s.Open(a)
	require.NoError(t, err)
	defer fa.Close()
	fb, err := s.Open(b)
	require.NoError(t, err)
	defer fb.Close()
	fc, err := s.Open(c)
	require.NoError(t, err)
	defer fc.Close()

	assert.Equal(t, fa.ETag, fb.ETag)
	assert.NotEqual(t, fa.ETag, fc.ETag)
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	tests := []struct {
		name string
		want error
	}{
		{"missing.jpg", ErrNotFound},
		{"sub", ErrNotFound},
		{"", ErrInvalidName},
		{"..", ErrInvalidName},
		{"../etc/passwd", ErrInvalidName},
		{`..\secret`, ErrInvalidName},
		{".hidden", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(tt.name)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUsageAndRemove(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	files, size, err := s.Usage()
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, size)

	a, err := s.Save("a", ".jpg", make([]byte, 100))
	require.NoError(t, err)
	_, err = s.Save("b", ".jpg", make([]byte, 50))
	require.NoError(t, err)

	files, size, err = s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, int64(150), size)

	require.NoError(t, s.Remove(a))
	require.NoError(t, s.Remove(a))

	files, _, err = s.Usage()
	require.NoError(t, err)
	assert.Equal(t, 1, files)
}
