package bundle_test

import (
	"testing"

	"github.com/Amund211/imagecache/internal/adapters/bundle"
	"github.com/Amund211/imagecache/internal/domain"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func newBundle(t *testing.T, files map[string]string) *bundle.Bundle {
	t.Helper()

	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return bundle.New(fs)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	b := newBundle(t, map[string]string{
		"icons/star.png":  "star-png",
		"icons/star.jpg":  "star-jpg",
		"logo.png":        "logo",
		"icons/dir.png/x": "nested",
	})

	cases := []struct {
		name      string
		resource  string
		extension string
		want      string
		err       error
	}{
		{name: "png", resource: "icons/star", extension: "png", want: "icons/star.png"},
		{name: "jpg", resource: "icons/star", extension: "jpg", want: "icons/star.jpg"},
		{name: "root", resource: "logo", extension: "png", want: "logo.png"},
		{name: "leading slash", resource: "/logo", extension: "png", want: "logo.png"},
		{name: "missing", resource: "icons/moon", extension: "png", err: domain.ErrResourceNotFound},
		{name: "wrong extension", resource: "logo", extension: "jpg", err: domain.ErrResourceNotFound},
		{name: "directory", resource: "icons/dir", extension: "png", err: domain.ErrResourceNotFound},
		{name: "empty", resource: "", extension: "png", err: domain.ErrResourceNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			got, err := b.Resolve(c.resource, c.extension)
			if c.err != nil {
				require.ErrorIs(t, err, c.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	b := newBundle(t, map[string]string{
		"icons/star.png": "star-png",
	})

	t.Run("resolved path", func(t *testing.T) {
		t.Parallel()

		resourcePath, err := b.Resolve("icons/star", "png")
		require.NoError(t, err)

		data, err := b.Fetch(resourcePath)
		require.NoError(t, err)
		require.Equal(t, "star-png", string(data))
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		_, err := b.Fetch("icons/moon.png")
		require.ErrorIs(t, err, domain.ErrResourceNotFound)
	})
}

func TestNewOS(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := bundle.NewOS(dir)

	_, err := b.Resolve("missing", "png")
	require.ErrorIs(t, err, domain.ErrResourceNotFound)
}
