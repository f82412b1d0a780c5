package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var sheetTemplate = template.Must(template.New("review_sheet.html").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"percent": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.0f%%", *v*100)
	},
}).ParseFS(templateFS, "templates/review_sheet.html"))

// SheetData holds data for review sheet rendering
type SheetData struct {
	ID             string
	Name           string
	SourceDB       string
	Status         string
	Reference      string
	DateOfBirth    string
	IDType         string
	IDNumber       string
	FaceMatchScore *float64
	Confidence     *float64
	ReviewedAt     *time.Time
	Summary        string
	Images         []SheetImage
	GeneratedAt    time.Time
}

// SheetImage is an inline image; Src must already be a data URL.
type SheetImage struct {
	Label string
	Src   template.URL
}

// RenderSheetHTML renders the review sheet template with provided data
func RenderSheetHTML(data SheetData) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
