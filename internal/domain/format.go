package domain

import (
	"fmt"
	"strings"
)

type ImageFormat int

const (
	FormatPNG ImageFormat = iota
	FormatJPG
)

const DefaultFormat = FormatPNG

// Extension is the file extension used when resolving local files.
func (f ImageFormat) Extension() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPG:
		return "jpg"
	default:
		panic(fmt.Sprintf("unknown image format %d", int(f)))
	}
}

func (f ImageFormat) String() string {
	return f.Extension()
}

func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	default:
		return 0, fmt.Errorf("unknown image format: %s", s)
	}
}
