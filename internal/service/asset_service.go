package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AssetService guarantees any asset reference handed to the protocol
// client is a fetchable HTTP URL. Inline payloads are uploaded to the
// blob store on demand; calling it twice for the same payload stores
// two copies, which is acceptable.
type AssetService interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type assetService struct {
	blobs BlobStore
}

func NewAssetService(blobs BlobStore) AssetService {
	return &assetService{blobs: blobs}
}

var allowedAssetTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
}

func (s *assetService) Resolve(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	if strings.HasPrefix(ref, "data:") {
		return s.uploadInline(ctx, ref)
	}

	return "", fmt.Errorf("%w: %.32q", ErrUnsupportedAssetFormat, ref)
}

// uploadInline decodes a data URI ("data:<mime>;base64,<payload>"),
// verifies the real content type against the allow-list and uploads it
// under a fresh key.
func (s *assetService) uploadInline(ctx context.Context, ref string) (string, error) {
	meta, payload, found := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", fmt.Errorf("%w: inline payload is not base64-encoded", ErrUnsupportedAssetFormat)
	}
	declaredMime := strings.TrimSuffix(meta, ";base64")

	fileBytes, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedAssetFormat, err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return "", fmt.Errorf("%w: unrecognized payload", ErrUnsupportedAssetFormat)
	}
	if _, ok := allowedAssetTypes[fileType.Extension]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAssetFormat, fileType.Extension)
	}

	mime := fileType.MIME.Value
	if mime == "" {
		mime = declaredMime
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	url, err := s.blobs.Upload(ctx, key, fileBytes, mime)
	if err != nil {
		return "", fmt.Errorf("uploading inline asset: %w", err)
	}

	return url, nil
}
