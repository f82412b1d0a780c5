// Package summary produces short reviewer-facing summaries of a submission from its
// profile fields and photo.
package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"userdeck/internal/media"
)

// ErrSummaryUnavailable is the only error callers see; the cause is logged.
var ErrSummaryUnavailable = errors.New("summary unavailable")

// Input is what the model is shown about one user.
type Input struct {
	Name     string        `json:"name"`
	ID       string        `json:"id"`
	Database string        `json:"database"`
	Image    media.DataURL `json:"-"`
}

type Output struct {
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generatedAt"`
	Cached      bool      `json:"cached,omitempty"`
}

// Generator is the language-model capability. Implementations must not retain the input.
type Generator interface {
	Generate(ctx context.Context, in Input) (Output, error)
}

var promptTemplate = template.Must(template.New("summary").Parse(
	`You are an AI assistant helping an admin review user profiles.

Given the following information about a user, generate a concise summary to help the admin quickly understand the user's profile.

Name: {{.Name}}
ID: {{.ID}}
Database: {{.Database}}
Image: attached
`))

func renderPrompt(in Input) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}
	return buf.String(), nil
}
