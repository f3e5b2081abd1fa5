package service

import (
	"go.uber.org/zap"

	appErrors "github.com/rcffuta/elib-api/pkg/errors"
	"github.com/rcffuta/elib-api/pkg/storage"
)

type uploadSigner interface {
	UploadSignature() (*storage.UploadSignature, error)
}

// UploadService issues signatures for direct uploads to the media host.
type UploadService struct {
	signer uploadSigner
	logger *zap.Logger
}

// NewUploadService constructs an UploadService.
func NewUploadService(signer uploadSigner, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{signer: signer, logger: logger}
}

// Signature returns a fresh upload signature for adminID.
func (s *UploadService) Signature(adminID string) (*storage.UploadSignature, error) {
	if adminID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	sig, err := s.signer.UploadSignature()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "media uploads are not configured")
	}
	s.logger.Debug("upload signature issued", zap.String("user_id", adminID), zap.Int64("timestamp", sig.Timestamp))
	return sig, nil
}
