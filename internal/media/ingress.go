// Package media normalizes client image payloads into materialized blobs.
package media

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"rewrite-moment/internal/domain"
)

const defaultMIME = "image/jpeg"

// ParseImage accepts either a base64 data URL or a bare base64 string and
// returns the decoded bytes with a trusted MIME type. Content sniffing wins
// over the declared type; when neither yields an image type the blob defaults
// to image/jpeg.
func ParseImage(input string) (*domain.ImageBlob, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty image payload", domain.ErrValidation)
	}

	declared := ""
	payload := input
	if strings.HasPrefix(input, "data:") {
		meta, rest, ok := strings.Cut(input[len("data:"):], ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data url", domain.ErrValidation)
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: unsupported data url encoding", domain.ErrValidation)
		}
		declared = strings.TrimSuffix(meta, ";base64")
		payload = rest
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: image is not valid base64", domain.ErrValidation)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", domain.ErrValidation)
	}

	return &domain.ImageBlob{Bytes: data, MIMEType: sniffMIME(data, declared)}, nil
}

func sniffMIME(data []byte, declared string) string {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return defaultMIME
}

// DataURL re-encodes a blob into the data URL form several vendors accept as
// an image reference.
func DataURL(b *domain.ImageBlob) string {
	return "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Bytes)
}
