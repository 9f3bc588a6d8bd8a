package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/Amund211/imagecache/internal/domain"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Bundle resolves and reads image resources shipped with the application.
type Bundle struct {
	fs billy.Filesystem
}

func New(filesystem billy.Filesystem) *Bundle {
	return &Bundle{fs: filesystem}
}

// NewOS returns a bundle rooted at dir on the local disk.
func NewOS(dir string) *Bundle {
	return New(osfs.New(dir, osfs.WithBoundOS()))
}

// Resolve returns the path of resource.extension inside the bundle.
func (b *Bundle) Resolve(resource string, extension string) (string, error) {
	if resource == "" {
		return "", fmt.Errorf("%w: empty resource name", domain.ErrResourceNotFound)
	}

	resourcePath := path.Clean(strings.TrimPrefix(resource, "/"))
	if extension != "" {
		resourcePath = fmt.Sprintf("%s.%s", resourcePath, extension)
	}

	info, err := b.fs.Stat(resourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrResourceNotFound, resourcePath)
		}
		return "", fmt.Errorf("%w: failed to stat %s: %w", domain.ErrResourceNotFound, resourcePath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", domain.ErrResourceNotFound, resourcePath)
	}

	return resourcePath, nil
}

// Fetch reads the resource at a path returned by Resolve.
func (b *Bundle) Fetch(resourcePath string) ([]byte, error) {
	data, err := util.ReadFile(b.fs, resourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrResourceNotFound, resourcePath)
		}
		return nil, fmt.Errorf("failed to read %s: %w", resourcePath, err)
	}
	return data, nil
}
