package domain_test

import (
	"testing"

	"github.com/Amund211/imagecache/internal/domain"
	"github.com/stretchr/testify/require"
)

type unknownReference struct {
	domain.ImageReference
}

func TestKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		ref          domain.ImageReference
		key          string
		locationPath string
		source       string
	}{
		{
			name:         "local file",
			ref:          domain.LocalFile{Directory: "icons/", Name: "star"},
			key:          "icons/star",
			locationPath: "icons/star",
			source:       "local",
		},
		{
			name:         "local file without separator",
			ref:          domain.LocalFile{Directory: "icons", Name: "star"},
			key:          "iconsstar",
			locationPath: "iconsstar",
			source:       "local",
		},
		{
			name:         "remote url",
			ref:          domain.RemoteURL{URL: "https://example.com/a.png?size=2"},
			key:          "https://example.com/a.png?size=2",
			locationPath: "https://example.com/a.png?size=2",
			source:       "remote",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, c.key, domain.Key(c.ref))
			require.Equal(t, c.locationPath, domain.LocationPath(c.ref))
			require.Equal(t, c.source, domain.Source(c.ref))
		})
	}

	t.Run("unknown variant panics", func(t *testing.T) {
		t.Parallel()

		require.Panics(t, func() {
			domain.Key(unknownReference{})
		})
		require.Panics(t, func() {
			domain.LocationPath(unknownReference{})
		})
	})
}

func TestParseRemoteURL(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		ref, err := domain.ParseRemoteURL("https://example.com/image.jpg")
		require.NoError(t, err)
		require.Equal(t, domain.RemoteURL{URL: "https://example.com/image.jpg"}, ref)
	})

	for _, raw := range []string{
		"",
		"example.com/image.jpg",
		"/relative/path.png",
		"http://[::1",
		"https://",
	} {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()

			_, err := domain.ParseRemoteURL(raw)
			require.ErrorIs(t, err, domain.ErrMalformedURL)
		})
	}
}

func TestImageFormat(t *testing.T) {
	t.Parallel()

	require.Equal(t, "png", domain.FormatPNG.Extension())
	require.Equal(t, "jpg", domain.FormatJPG.Extension())
	require.Equal(t, domain.FormatPNG, domain.DefaultFormat)

	for raw, want := range map[string]domain.ImageFormat{
		"png":  domain.FormatPNG,
		"PNG":  domain.FormatPNG,
		"jpg":  domain.FormatJPG,
		"jpeg": domain.FormatJPG,
	} {
		got, err := domain.ParseImageFormat(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := domain.ParseImageFormat("gif")
	require.Error(t, err)
}
