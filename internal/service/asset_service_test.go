package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobStore struct {
	key      string
	mime     string
	payload  []byte
	uploaded int
}

func (f *fakeBlobStore) Upload(ctx context.Context, key string, file []byte, filetype string) (string, error) {
	f.key = key
	f.mime = filetype
	f.payload = file
	f.uploaded++
	return "https://blobs.example.com/" + key, nil
}

// Magic bytes for a minimal PNG and GIF header, enough for content-type
// sniffing.
var (
	pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")
)

func dataURI(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func TestResolvePassesThroughHTTPURLs(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := NewAssetService(blobs)

	for _, ref := range []string{"http://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"} {
		url, err := svc.Resolve(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, ref, url)
	}
	assert.Zero(t, blobs.uploaded, "fetchable URLs must not be re-uploaded")
}

func TestResolveUploadsInlinePayload(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := NewAssetService(blobs)

	url, err := svc.Resolve(context.Background(), dataURI("image/png", pngBytes))
	require.NoError(t, err)

	assert.Equal(t, 1, blobs.uploaded)
	assert.Equal(t, "https://blobs.example.com/"+blobs.key, url)
	assert.Equal(t, "image/png", blobs.mime)
	assert.Equal(t, pngBytes, blobs.payload)
	assert.NotEmpty(t, blobs.key)
}

func TestResolveSniffsRealContentType(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := NewAssetService(blobs)

	// The declared mime lies; the sniffed type is what counts.
	_, err := svc.Resolve(context.Background(), dataURI("image/png", gifBytes))
	require.ErrorIs(t, err, ErrUnsupportedAssetFormat)
	assert.Zero(t, blobs.uploaded)
}

func TestResolveRejectsOpaqueReferences(t *testing.T) {
	svc := NewAssetService(&fakeBlobStore{})

	for _, ref := range []string{"ftp://example.com/a.jpg", "s3://bucket/a.jpg", "not a url at all", ""} {
		_, err := svc.Resolve(context.Background(), ref)
		assert.ErrorIs(t, err, ErrUnsupportedAssetFormat, ref)
	}
}

func TestResolveRejectsMalformedDataURI(t *testing.T) {
	svc := NewAssetService(&fakeBlobStore{})

	tests := []string{
		"data:image/png,rawpayload",
		"data:image/png;base64,%%%not-base64%%%",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("garbage")),
	}
	for _, ref := range tests {
		_, err := svc.Resolve(context.Background(), ref)
		assert.ErrorIs(t, err, ErrUnsupportedAssetFormat, ref)
	}
}
