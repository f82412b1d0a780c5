package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("submission not found")

// Submission is one row of the kyc_submissions collection. Nullable columns stay
// pointers so that "absent" survives the trip to the review layer.
type Submission struct {
	ID             string
	Name           string
	SourceDB       string
	Image          string
	ImageHint      string
	DateOfBirth    string
	IDType         string
	IDNumber       string
	IDImage        string
	Selfie         string
	Status         *string
	ReviewedAt     *time.Time
	FaceMatchScore *float64
	Confidence     *float64
	Reference      *string
	CreatedAt      time.Time
}

// NewSubmission carries the fields of a document to create; the store assigns the id.
type NewSubmission struct {
	Name           string   `json:"name"`
	SourceDB       string   `json:"db"`
	Image          string   `json:"image"`
	ImageHint      string   `json:"imageHint"`
	DateOfBirth    string   `json:"dateOfBirth"`
	IDType         string   `json:"idType"`
	IDNumber       string   `json:"idNumber"`
	IDImage        string   `json:"idImage"`
	Selfie         string   `json:"selfie"`
	Status         string   `json:"status,omitempty"`
	FaceMatchScore *float64 `json:"faceMatchScore,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Reference      string   `json:"reference,omitempty"`
}
