package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// 1x1 transparent PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

type fakeObjects struct {
	bucket, key string
	body        []byte
	contentType string
	err         error
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, string, error) {
	f.bucket, f.key = bucket, key
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(bytes.NewReader(f.body)), f.contentType, nil
}

func TestDataURLRoundTrip(t *testing.T) {
	original := DataURL{MIMEType: "image/png", Data: pngBytes}
	parsed, err := ParseDataURL(original.String())
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if parsed.MIMEType != "image/png" || !bytes.Equal(parsed.Data, pngBytes) {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestParseDataURLRejects(t *testing.T) {
	cases := map[string]string{
		"not data":  "https://example.com/a.png",
		"no comma":  "data:image/png;base64",
		"not b64":   "data:image/png,abc",
		"not image": "data:text/plain;base64,aGVsbG8=",
		"bad b64":   "data:image/png;base64,%%%",
		"empty":     "data:image/png;base64,",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDataURL(raw); !errors.Is(err, ErrUnsupportedImage) {
				t.Fatalf("expected ErrUnsupportedImage, got %v", err)
			}
		})
	}
}

func TestResolveHTTPUsesContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	resolver, err := NewResolver(Config{})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	got, err := resolver.Resolve(context.Background(), server.URL+"/avatar.jpg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.MIMEType != "image/jpeg" || string(got.Data) != "jpeg-bytes" {
		t.Fatalf("unexpected data url %+v", got)
	}
}

func TestResolveHTTPSniffsWhenTypeMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	resolver, _ := NewResolver(Config{})
	got, err := resolver.Resolve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", got.MIMEType)
	}
}

func TestResolveHTTPThroughProxy(t *testing.T) {
	var gotURL string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer proxy.Close()

	resolver, _ := NewResolver(Config{ProxyURL: proxy.URL + "/"})
	source := "https://picsum.photos/seed/a b/200?x=1&y=2"
	if _, err := resolver.Resolve(context.Background(), source); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gotURL != source {
		t.Fatalf("proxy received url %q, want %q", gotURL, source)
	}
}

func TestResolveHTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		ctype   string
		body    string
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, ctype: "image/png", body: "x"},
		{name: "empty", status: http.StatusOK, ctype: "image/png", body: "", wantErr: ErrUnsupportedImage},
		{name: "html", status: http.StatusOK, ctype: "text/html", body: "<html></html>", wantErr: ErrUnsupportedImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.ctype)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			resolver, _ := NewResolver(Config{})
			_, err := resolver.Resolve(context.Background(), server.URL)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestResolveObject(t *testing.T) {
	objects := &fakeObjects{body: pngBytes, contentType: "image/png"}
	resolver := &Resolver{objects: objects}

	got, err := resolver.Resolve(context.Background(), "s3://kyc-images/selfies/usr_1.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if objects.bucket != "kyc-images" || objects.key != "selfies/usr_1.png" {
		t.Fatalf("unexpected object lookup %s/%s", objects.bucket, objects.key)
	}
	if !strings.HasPrefix(got.String(), "data:image/png;base64,") {
		t.Fatalf("unexpected data url %q", got.String())
	}
}

func TestResolveObjectWithoutStorage(t *testing.T) {
	resolver, _ := NewResolver(Config{})
	if _, err := resolver.Resolve(context.Background(), "s3://bucket/key"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestResolveObjectMalformed(t *testing.T) {
	resolver := &Resolver{objects: &fakeObjects{}}
	if _, err := resolver.Resolve(context.Background(), "s3://bucket-only"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestResolveUnknownScheme(t *testing.T) {
	resolver, _ := NewResolver(Config{})
	for _, ref := range []string{"", "ftp://example.com/a.png", "/local/path.png"} {
		if _, err := resolver.Resolve(context.Background(), ref); !errors.Is(err, ErrUnsupportedImage) {
			t.Fatalf("%q: expected ErrUnsupportedImage, got %v", ref, err)
		}
	}
}
