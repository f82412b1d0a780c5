package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedImage = errors.New("unsupported image")

// DataURL is an inline image: a MIME type plus the raw bytes, rendered as
// data:<mime>;base64,<payload>.
type DataURL struct {
	MIMEType string
	Data     []byte
}

func (d DataURL) String() string {
	return "data:" + d.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

// ParseDataURL accepts only base64 image data URLs.
func ParseDataURL(raw string) (DataURL, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "data:")
	if !ok {
		return DataURL{}, fmt.Errorf("%w: not a data url", ErrUnsupportedImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURL{}, fmt.Errorf("%w: data url without payload", ErrUnsupportedImage)
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return DataURL{}, fmt.Errorf("%w: data url is not base64", ErrUnsupportedImage)
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !isImageType(mimeType) {
		return DataURL{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, mimeType)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURL{}, fmt.Errorf("%w: decode payload: %v", ErrUnsupportedImage, err)
	}
	if len(data) == 0 {
		return DataURL{}, fmt.Errorf("%w: empty payload", ErrUnsupportedImage)
	}
	return DataURL{MIMEType: mimeType, Data: data}, nil
}

// isImageType takes a bare media type or a Content-Type header value.
func isImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func baseMediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
