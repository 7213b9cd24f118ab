package filestore

import (
	"bytes"
	"context"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

var ErrNotAnImage = errors.New("upload a valid image (jpeg, png, gif, tiff or bmp)")

var contentTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

// ImageStore only accepts images. It re-encodes them, downscaling anything wider than maxWidth,
// before handing them to the underlying store.
type ImageStore struct {
	next     core.FileStore
	maxWidth int
}

var _ core.FileStore = (*ImageStore)(nil)

func NewImageStore(next core.FileStore, maxWidth int) *ImageStore {
	return &ImageStore{next: next, maxWidth: maxWidth}
}

func (s *ImageStore) Save(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	format, err := imaging.FormatFromFilename(key)
	if err != nil {
		return "", core.NewValidationError(ErrNotAnImage, core.FieldError{Field: "file", Error: ErrNotAnImage.Error()})
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", core.NewValidationError(ErrNotAnImage, core.FieldError{Field: "file", Error: ErrNotAnImage.Error()})
	}
	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, format); err != nil {
		return "", errors.Wrap(err, "encoding image")
	}
	return s.next.Save(ctx, key, &buf, contentTypes[format])
}

func (s *ImageStore) Delete(ctx context.Context, url string) error {
	return s.next.Delete(ctx, url)
}
