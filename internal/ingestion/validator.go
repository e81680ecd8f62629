package ingestion

import (
	"encoding/base64"
	"fmt"
	"strings"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
)

// maxUploadBytes caps decoded document size at 25 MB.
const maxUploadBytes = 25 << 20

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"text/plain":    {},
	"text/markdown": {},
	"text/csv":      {},
	"text/html":     {},
}

// ValidateUpload checks the request and returns the decoded raw bytes.
func ValidateUpload(req *UploadRequest) ([]byte, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "filename is required")
	}
	if len(req.Filename) > 255 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "filename exceeds 255 characters")
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		return nil, apperrors.Newf(apperrors.ErrUnsupportedType, 400, "content type %q", req.ContentType)
	}
	if req.Content == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "content is required")
	}

	raw, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "content is not valid base64: %v", err)
	}
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "content is empty")
	}
	if len(raw) > maxUploadBytes {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 413,
			fmt.Sprintf("document exceeds %d bytes", maxUploadBytes))
	}
	return raw, nil
}
