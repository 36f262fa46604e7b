// Package excel renders the consult audit trail as an XLSX workbook for
// clinic reporting.
package excel

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

const sheetName = "Consultas"

var headers = []string{
	"ID", "Usuario", "Síntomas", "Especie", "Edad", "Urgencia",
	"Estado", "Nota", "Fuentes", "Revisor", "Comentario", "Creada",
}

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

// Write renders the records, newest first as given, into w.
func (e *Exporter) Write(w io.Writer, records []domain.ConsultRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, record := range records {
		values := []any{
			record.ID,
			record.UserID,
			record.Symptoms,
			record.Species,
			record.Age,
			urgencyOf(record),
			string(record.Status),
			record.Note,
			strings.Join(record.Sources, ", "),
			record.ReviewerID,
			record.ReviewerComment,
			record.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", i+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func urgencyOf(record domain.ConsultRecord) string {
	if record.ParsedResponse == nil {
		return ""
	}
	return record.ParsedResponse.Urgency
}
