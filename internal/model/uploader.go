package model

import (
	"context"
	"io"
)

// Uploader stores attachment bytes and returns the metadata kept on the
// record. Implementations live outside the record store.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (Attachment, error)
	Delete(ctx context.Context, a Attachment) error
}
