package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"userdeck/internal/media"
	"userdeck/internal/review"
	"userdeck/internal/summary"
)

type imageResolver interface {
	Resolve(ctx context.Context, ref string) (media.DataURL, error)
}

type summaryLookup interface {
	Cached(ctx context.Context, id string) (summary.Output, bool)
}

// Service renders review sheets.
type Service struct {
	images    imageResolver
	summaries summaryLookup
	logger    *zap.Logger
	print     func(ctx context.Context, browserPath, html string) ([]byte, error)
}

// NewService creates a new export service. summaries may be nil.
func NewService(images imageResolver, summaries summaryLookup, logger *zap.Logger) *Service {
	return &Service{images: images, summaries: summaries, logger: logger, print: printPDF}
}

// ReviewSheet renders item as a PDF. Images that cannot be resolved are left out.
func (s *Service) ReviewSheet(ctx context.Context, item review.Submission) (*Result, error) {
	browserPath, err := findChromium(lookPath)
	if err != nil {
		return nil, err
	}

	html, err := s.RenderHTML(ctx, item)
	if err != nil {
		return nil, err
	}
	data, err := s.print(ctx, browserPath, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename(item.Name+" "+item.ID) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// RenderHTML builds the sheet markup that ReviewSheet prints.
func (s *Service) RenderHTML(ctx context.Context, item review.Submission) (string, error) {
	data := SheetData{
		ID:             item.ID,
		Name:           item.Name,
		SourceDB:       item.SourceDB,
		Status:         item.Status.String(),
		Reference:      item.Reference,
		DateOfBirth:    item.DateOfBirth,
		IDType:         item.IDType,
		IDNumber:       item.IDNumber,
		FaceMatchScore: item.FaceMatchScore,
		Confidence:     item.Confidence,
		ReviewedAt:     item.ReviewedAt,
		GeneratedAt:    time.Now().UTC(),
	}
	if s.summaries != nil {
		if out, ok := s.summaries.Cached(ctx, item.ID); ok {
			data.Summary = out.Summary
		}
	}

	for _, img := range []struct{ label, ref string }{
		{"Profile photo", item.Image},
		{"ID document", item.IDImage},
		{"Selfie", item.Selfie},
	} {
		if strings.TrimSpace(img.ref) == "" || s.images == nil {
			continue
		}
		resolved, err := s.images.Resolve(ctx, img.ref)
		if err != nil {
			s.logger.Warn("review sheet image skipped",
				zap.String("id", item.ID),
				zap.String("image", img.label),
				zap.Error(err),
			)
			continue
		}
		data.Images = append(data.Images, SheetImage{Label: img.label, Src: template.URL(resolved.String())})
	}

	html, err := RenderSheetHTML(data)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return html, nil
}
