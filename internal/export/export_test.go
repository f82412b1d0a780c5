package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"userdeck/internal/media"
	"userdeck/internal/review"
	"userdeck/internal/summary"
)

type fakeResolver struct {
	failRef string
}

func (f fakeResolver) Resolve(_ context.Context, ref string) (media.DataURL, error) {
	if ref == f.failRef {
		return media.DataURL{}, media.ErrUnsupportedImage
	}
	return media.DataURL{MIMEType: "image/png", Data: []byte(ref)}, nil
}

type fakeSummaries map[string]string

func (f fakeSummaries) Cached(_ context.Context, id string) (summary.Output, bool) {
	text, ok := f[id]
	return summary.Output{Summary: text}, ok
}

func testSubmission() review.Submission {
	score := 0.92
	reviewed := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	return review.Submission{
		ID:             "usr_1",
		Name:           "Alice Johnson",
		SourceDB:       "Production DB",
		Status:         review.StatusApproved,
		Reference:      "REF-<001>",
		DateOfBirth:    "1990-05-15",
		IDType:         "Passport",
		IDNumber:       "P12345678",
		Image:          "https://img/avatar",
		IDImage:        "https://img/id",
		Selfie:         "https://img/selfie",
		FaceMatchScore: &score,
		ReviewedAt:     &reviewed,
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Alice Johnson usr_1", "Alice-Johnson-usr_1"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "submission"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"é", "%C3%A9"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderHTML(t *testing.T) {
	svc := NewService(fakeResolver{failRef: "https://img/id"}, fakeSummaries{"usr_1": "Verified adult traveller."}, zaptest.NewLogger(t))

	html, err := svc.RenderHTML(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}

	for _, want := range []string{
		"Alice Johnson",
		"Production DB",
		"APPROVED",
		"status-approved",
		"Passport",
		"92%",
		"n/a",
		"Verified adult traveller.",
		"Jun 1, 2024",
		`src="data:image/png;base64,`,
		"Profile photo",
		"Selfie",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "ID document") {
		t.Error("unresolvable image should be skipped")
	}
	if strings.Contains(html, "REF-<001>") || !strings.Contains(html, "REF-&lt;001&gt;") {
		t.Error("reference must be escaped")
	}
	if strings.Contains(html, "ZgotmplZ") {
		t.Error("data url was rejected by the template sanitizer")
	}
}

func TestRenderHTMLWithoutSummaryOrImages(t *testing.T) {
	item := testSubmission()
	item.Status = review.StatusPending
	item.ReviewedAt = nil
	svc := NewService(nil, nil, zaptest.NewLogger(t))

	html, err := svc.RenderHTML(context.Background(), item)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if strings.Contains(html, "<h2>Summary</h2>") || strings.Contains(html, "<h2>Images</h2>") {
		t.Error("empty sections should be omitted")
	}
	if strings.Contains(html, "reviewed") {
		t.Error("pending submission should not show a review time")
	}
}

func TestReviewSheetWithoutChromium(t *testing.T) {
	original := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = original }()

	svc := NewService(nil, nil, zaptest.NewLogger(t))
	if _, err := svc.ReviewSheet(context.Background(), testSubmission()); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestReviewSheet(t *testing.T) {
	original := lookPath
	lookPath = func(name string) (string, error) {
		if name == "chromium" {
			return "/usr/bin/chromium", nil
		}
		return "", errors.New("not found")
	}
	defer func() { lookPath = original }()

	svc := NewService(nil, nil, zaptest.NewLogger(t))
	var gotPath string
	svc.print = func(_ context.Context, browserPath, html string) ([]byte, error) {
		gotPath = browserPath
		return []byte("%PDF-1.7"), nil
	}

	result, err := svc.ReviewSheet(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("ReviewSheet() error = %v", err)
	}
	if gotPath != "/usr/bin/chromium" {
		t.Errorf("browser path = %q", gotPath)
	}
	if result.Filename != "Alice-Johnson-usr_1.pdf" || result.MimeType != "application/pdf" {
		t.Errorf("unexpected result %+v", result)
	}
}
