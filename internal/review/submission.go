package review

import (
	"strings"
	"time"

	"userdeck/internal/store"
)

// Submission is the review-facing projection of one collection document.
type Submission struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SourceDB       string     `json:"db"`
	Image          string     `json:"image"`
	ImageHint      string     `json:"imageHint"`
	DateOfBirth    string     `json:"dateOfBirth"`
	IDType         string     `json:"idType"`
	IDNumber       string     `json:"idNumber"`
	IDImage        string     `json:"idImage"`
	Selfie         string     `json:"selfie"`
	Status         Status     `json:"status"`
	ReviewedAt     *time.Time `json:"reviewedAt"`
	FaceMatchScore *float64   `json:"faceMatchScore"`
	Confidence     *float64   `json:"confidence"`
	Reference      string     `json:"reference,omitempty"`
	// Optimistic marks a local transition the store has not confirmed yet.
	Optimistic bool `json:"optimistic,omitempty"`
}

func fromRecord(record store.Submission) Submission {
	item := Submission{
		ID:             record.ID,
		Name:           record.Name,
		SourceDB:       record.SourceDB,
		Image:          record.Image,
		ImageHint:      record.ImageHint,
		DateOfBirth:    record.DateOfBirth,
		IDType:         record.IDType,
		IDNumber:       record.IDNumber,
		IDImage:        record.IDImage,
		Selfie:         record.Selfie,
		Status:         classifyStatus(record.Status),
		ReviewedAt:     record.ReviewedAt,
		FaceMatchScore: record.FaceMatchScore,
		Confidence:     record.Confidence,
	}
	if strings.TrimSpace(item.Name) == "" {
		item.Name = "Unknown"
	}
	if strings.TrimSpace(item.ImageHint) == "" {
		item.ImageHint = "face"
	}
	if record.Reference != nil {
		item.Reference = *record.Reference
	}
	return item
}

// matchesReference reports whether term (already lower-cased and trimmed) occurs in the
// submission's reference. A blank term matches everything.
func (s Submission) matchesReference(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Reference), term)
}
