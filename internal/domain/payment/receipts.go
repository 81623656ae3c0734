package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/pkg/imaging"
	"github.com/quizbirr/quizbirr-api/internal/pkg/storage"
)

// Receipts validates, normalises and stores bank deposit receipts.
type Receipts struct {
	store  storage.Storage
	images *imaging.Processor
}

// NewReceipts creates a receipt store. images may be nil to store images unchanged.
func NewReceipts(store storage.Storage, images *imaging.Processor) *Receipts {
	return &Receipts{store: store, images: images}
}

// Save stores src under receipts/<userID>/ and returns its key.
func (r *Receipts) Save(ctx context.Context, userID uuid.UUID, src io.Reader) (string, error) {
	data, mimeType, err := storage.ValidateReceipt(src)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrInvalidMimeType) || errors.Is(err, storage.ErrEmptyFile) {
			return "", fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
		}
		return "", err
	}

	if r.images != nil && imaging.IsImage(mimeType) {
		res, err := r.images.Normalize(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
		}
		data, mimeType = res.Data, res.ContentType
	}

	key := fmt.Sprintf("receipts/%s/%s%s", userID, uuid.NewString(), storage.ExtensionForMime(mimeType))
	if err := r.store.Put(ctx, key, bytes.NewReader(data), mimeType); err != nil {
		return "", err
	}
	return key, nil
}

// Open streams a stored receipt with its content type.
func (r *Receipts) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	rc, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return rc, ct, nil
}

// Delete removes a stored receipt. Failures are logged only.
func (r *Receipts) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := r.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to delete receipt")
	}
}
