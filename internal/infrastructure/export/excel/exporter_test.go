package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

func TestWriteWorkbook(t *testing.T) {
	records := []domain.ConsultRecord{
		{
			ID:       "consult-1",
			UserID:   "user-1",
			Symptoms: "convulsiones",
			Species:  "perro",
			Sources:  []string{"convulsiones.md", "toxinas.md"},
			ParsedResponse: &domain.TriageResult{
				Animal:  "perro",
				Urgency: domain.UrgencyHigh,
			},
			Status:    domain.ConsultReviewed,
			CreatedAt: time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC),
		},
		{
			ID:        "consult-2",
			UserID:    "user-2",
			Symptoms:  "vomita",
			Status:    domain.ConsultPending,
			Note:      "fallback:embed_rate_limited",
			CreatedAt: time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := NewExporter().Write(&buf, records); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][5] != "Urgencia" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "consult-1" || rows[1][5] != "alta" {
		t.Fatalf("row 1 = %v", rows[1])
	}
	if rows[2][7] != "fallback:embed_rate_limited" {
		t.Fatalf("row 2 note = %q", rows[2][7])
	}
}

func TestWriteEmptyRecordSet(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter().Write(&buf, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty workbook body")
	}
}
