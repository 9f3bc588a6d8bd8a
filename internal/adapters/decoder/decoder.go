package decoder

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Amund211/imagecache/internal/domain"
	_ "golang.org/x/image/webp"
)

type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

type imageDecoder struct{}

// Decode sniffs the format from the data itself. PNG, JPEG and lossy WebP are supported.
func (imageDecoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", domain.ErrDecode)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: %s decoder returned no image", domain.ErrDecode, format)
	}

	return img, nil
}

func New() Decoder {
	return imageDecoder{}
}
