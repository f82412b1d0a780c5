// Package media turns the image references stored on a submission into inline data URLs
// that can be handed to the summary model.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxImageBytes caps every fetched image.
const maxImageBytes = 10 << 20

type objectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, string, error)
}

type Config struct {
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	// ProxyURL, when set, is prefixed to every http(s) fetch as ?url=<escaped>.
	ProxyURL string
}

type Resolver struct {
	httpClient *http.Client
	objects    objectGetter
	proxyURL   string
}

// NewResolver builds a resolver. Object storage is optional; without an endpoint s3://
// references fail with ErrUnsupportedImage.
func NewResolver(cfg Config) (*Resolver, error) {
	r := &Resolver{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		proxyURL:   strings.TrimSpace(cfg.ProxyURL),
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		r.objects = &minioObjects{client: client}
	}
	return r, nil
}

// Resolve returns the image behind ref as a data URL. data:, s3:// and http(s) references
// are supported.
func (r *Resolver) Resolve(ctx context.Context, ref string) (DataURL, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return DataURL{}, fmt.Errorf("%w: empty reference", ErrUnsupportedImage)
	case strings.HasPrefix(ref, "data:"):
		return ParseDataURL(ref)
	case strings.HasPrefix(ref, "s3://"):
		return r.resolveObject(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.resolveHTTP(ctx, ref)
	default:
		return DataURL{}, fmt.Errorf("%w: unsupported reference scheme", ErrUnsupportedImage)
	}
}

func (r *Resolver) resolveObject(ctx context.Context, ref string) (DataURL, error) {
	if r.objects == nil {
		return DataURL{}, fmt.Errorf("%w: object storage is not configured", ErrUnsupportedImage)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return DataURL{}, fmt.Errorf("%w: malformed object reference %q", ErrUnsupportedImage, ref)
	}
	body, contentType, err := r.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return DataURL{}, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer body.Close()
	return readImage(body, contentType)
}

func (r *Resolver) resolveHTTP(ctx context.Context, ref string) (DataURL, error) {
	target := ref
	if r.proxyURL != "" {
		target = r.proxyURL + "?url=" + url.QueryEscape(ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return DataURL{}, fmt.Errorf("build image request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return DataURL{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DataURL{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return readImage(resp.Body, resp.Header.Get("Content-Type"))
}

// readImage trusts the declared type when it is an image and sniffs the bytes otherwise.
func readImage(body io.Reader, contentType string) (DataURL, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxImageBytes+1))
	if err != nil {
		return DataURL{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return DataURL{}, fmt.Errorf("%w: empty body", ErrUnsupportedImage)
	}
	if len(data) > maxImageBytes {
		return DataURL{}, fmt.Errorf("%w: larger than %d bytes", ErrUnsupportedImage, maxImageBytes)
	}
	mimeType := baseMediaType(contentType)
	if !isImageType(mimeType) {
		mimeType = baseMediaType(http.DetectContentType(data))
	}
	if !isImageType(mimeType) {
		return DataURL{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, mimeType)
	}
	return DataURL{MIMEType: mimeType, Data: data}, nil
}

type minioObjects struct {
	client *minio.Client
}

func (m *minioObjects) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, string, error) {
	object, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	info, err := object.Stat()
	if err != nil {
		_ = object.Close()
		return nil, "", err
	}
	return object, info.ContentType, nil
}
