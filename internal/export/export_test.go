package export

import (
	"os"
	"strings"
	"testing"
	"time"

	"bolonyay/internal/store"
)

func TestTextExporterRendersFiling(t *testing.T) {
	e, err := NewTextExporter(t.TempDir())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	rec := &store.CaseRecord{
		CaseNumber:      "BN2026123456",
		CaseType:        "Divorce",
		CaseDetails:     "Mutual consent case",
		FilingQuestions: `["What is your marriage date?","Where do you reside?"]`,
		UserResponses:   `["12 March 2019","Pune"]`,
		Status:          "filed",
		Language:        "en",
		CreatedAt:       time.Now(),
	}
	user := &store.User{Name: "Asha"}

	art, err := e.Export(rec, user)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if art.Format != "text" {
		t.Fatalf("format = %q", art.Format)
	}

	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	out := string(data)
	for _, want := range []string{"BN2026123456", "Divorce", "Asha", "What is your marriage date?", "Pune"} {
		if !strings.Contains(out, want) {
			t.Errorf("artifact missing %q:\n%s", want, out)
		}
	}
}
