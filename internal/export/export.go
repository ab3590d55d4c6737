package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bolonyay/internal/store"
)

// Artifact references a rendered filing document.
type Artifact struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// Exporter renders a filed case into a shareable artifact. Callers must
// not invoke it before the case is filed; the workflow enforces that.
type Exporter interface {
	Export(rec *store.CaseRecord, user *store.User) (Artifact, error)
}

// TextExporter writes a plain-text filing summary per case.
type TextExporter struct {
	dir string
}

func NewTextExporter(dir string) (*TextExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: ensure dir %s: %w", dir, err)
	}
	return &TextExporter{dir: dir}, nil
}

func (e *TextExporter) Export(rec *store.CaseRecord, user *store.User) (Artifact, error) {
	var questions, responses []string
	if rec.FilingQuestions != "" {
		if err := json.Unmarshal([]byte(rec.FilingQuestions), &questions); err != nil {
			return Artifact{}, fmt.Errorf("export: decode questions: %w", err)
		}
	}
	if rec.UserResponses != "" {
		if err := json.Unmarshal([]byte(rec.UserResponses), &responses); err != nil {
			return Artifact{}, fmt.Errorf("export: decode responses: %w", err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Case Number: %s\n", rec.CaseNumber)
	fmt.Fprintf(&b, "Case Type: %s\n", rec.CaseType)
	fmt.Fprintf(&b, "Status: %s\n", rec.Status)
	fmt.Fprintf(&b, "Language: %s\n", rec.Language)
	if user != nil && user.Name != "" {
		fmt.Fprintf(&b, "Filed By: %s\n", user.Name)
	}
	fmt.Fprintf(&b, "Filed At: %s\n\n", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Details:\n%s\n", rec.CaseDetails)
	if len(questions) > 0 {
		b.WriteString("\nQuestionnaire:\n")
		for i, q := range questions {
			answer := ""
			if i < len(responses) {
				answer = responses[i]
			}
			fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, q, answer)
		}
	}

	path := filepath.Join(e.dir, rec.CaseNumber+".txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("export: write %s: %w", path, err)
	}
	return Artifact{Path: path, Format: "text"}, nil
}
