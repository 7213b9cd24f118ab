// Package filestore stores uploaded screenshots and avatars on local disk or S3.
package filestore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

// New builds the store selected by conf.Storage.Driver, wrapped so that only images are accepted.
func New(ctx context.Context, conf *core.Config) (core.FileStore, error) {
	var store core.FileStore
	switch conf.Storage.Driver {
	case "", "local":
		store = NewLocalStore(conf.Storage.LocalDir, conf.Storage.PublicBaseURL)
	case "s3":
		s3Store, err := NewS3Store(ctx, conf.Storage)
		if err != nil {
			return nil, err
		}
		store = s3Store
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
	return NewImageStore(store, conf.Storage.ImageMaxWidth), nil
}
