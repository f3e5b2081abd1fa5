package storage

import (
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// UploadSignature is handed to clients so they can upload directly to the media host.
type UploadSignature struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
	Folder    string `json:"folder"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
}

// MediaSigner signs upload parameters the way the media host's API expects:
// sorted key=value pairs joined by '&', suffixed with the API secret, SHA-1 hex encoded.
type MediaSigner struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	now       func() time.Time
}

// NewMediaSigner builds a signer for the given account.
func NewMediaSigner(cloudName, apiKey, apiSecret, folder string) *MediaSigner {
	return &MediaSigner{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    folder,
		now:       time.Now,
	}
}

// UploadSignature signs a timestamped upload into the configured folder.
func (s *MediaSigner) UploadSignature() (*UploadSignature, error) {
	if s.apiSecret == "" {
		return nil, fmt.Errorf("media api secret missing")
	}
	timestamp := s.now().Unix()
	params := map[string]string{"timestamp": strconv.FormatInt(timestamp, 10)}
	if s.folder != "" {
		params["folder"] = s.folder
	}
	return &UploadSignature{
		Timestamp: timestamp,
		Signature: SignParams(params, s.apiSecret),
		Folder:    s.folder,
		APIKey:    s.apiKey,
		CloudName: s.cloudName,
	}, nil
}

// SignParams computes the media host request signature. Empty values are skipped.
func SignParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
