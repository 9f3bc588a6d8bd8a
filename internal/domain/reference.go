package domain

import (
	"fmt"
	"net/url"
)

// ImageReference identifies an image by where it is fetched from.
//
// The set of implementations is closed: LocalFile and RemoteURL.
type ImageReference interface {
	isImageReference()
}

// LocalFile is an image shipped inside the bundle.
type LocalFile struct {
	Directory string
	Name      string
}

// RemoteURL is an image fetched over HTTP(S).
type RemoteURL struct {
	URL string
}

func (LocalFile) isImageReference() {}
func (RemoteURL) isImageReference() {}

// Key returns the identity used for both cache lookups and in-flight deduplication.
func Key(ref ImageReference) string {
	switch r := ref.(type) {
	case LocalFile:
		// Concatenated verbatim, callers are expected to include a trailing separator
		return r.Directory + r.Name
	case RemoteURL:
		return r.URL
	default:
		panic(fmt.Sprintf("unknown image reference type %T", ref))
	}
}

// LocationPath returns the path handed to the fetch backend.
func LocationPath(ref ImageReference) string {
	switch r := ref.(type) {
	case LocalFile:
		return r.Directory + r.Name
	case RemoteURL:
		return r.URL
	default:
		panic(fmt.Sprintf("unknown image reference type %T", ref))
	}
}

// Source returns a short label for the reference variant, for logs and metrics.
func Source(ref ImageReference) string {
	switch ref.(type) {
	case LocalFile:
		return "local"
	case RemoteURL:
		return "remote"
	default:
		panic(fmt.Sprintf("unknown image reference type %T", ref))
	}
}

// ParseRemoteURL validates rawURL and returns it as a RemoteURL.
//
// Loading a RemoteURL that does not pass this check is a programming error and panics.
func ParseRemoteURL(rawURL string) (RemoteURL, error) {
	if _, err := ParseImageURL(rawURL); err != nil {
		return RemoteURL{}, err
	}
	return RemoteURL{URL: rawURL}, nil
}

func ParseImageURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q is missing scheme or host", ErrMalformedURL, rawURL)
	}
	return parsed, nil
}
