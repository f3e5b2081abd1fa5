package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/rcffuta/elib-api/pkg/errors"
	"github.com/rcffuta/elib-api/pkg/storage"
)

func TestUploadServiceSignature(t *testing.T) {
	svc := NewUploadService(storage.NewMediaSigner("demo", "key-1", "secret", "rcf-elib"), nil)

	sig, err := svc.Signature("admin-1")
	require.NoError(t, err)
	assert.Equal(t, "rcf-elib", sig.Folder)
	assert.Equal(t, "key-1", sig.APIKey)
	assert.Len(t, sig.Signature, 40)

	_, err = svc.Signature("")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestUploadServiceUnconfigured(t *testing.T) {
	svc := NewUploadService(storage.NewMediaSigner("demo", "key-1", "", "rcf-elib"), nil)
	_, err := svc.Signature("admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
