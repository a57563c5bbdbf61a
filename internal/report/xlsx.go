package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/llm-monitor/backend/internal/storage/models"
)

const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var resultHeaders = []interface{}{
	"ID", "Analyzed At", "Website", "URL", "Question", "LLM Service", "Answer",
	"Accuracy Score", "Misrepresentation", "Confidence", "Degraded", "Summary", "Issues",
}

// WriteAnalysisWorkbook writes the results and the dashboard aggregates as an
// XLSX workbook. stats may be nil.
func WriteAnalysisWorkbook(w io.Writer, results []models.AnalysisView, stats *models.DashboardStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("failed to name results sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(ResultsSheet, "A1", &resultHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(resultHeaders), 1)
	if err := f.SetCellStyle(ResultsSheet, "A1", last, header); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range results {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			r.ID,
			r.AnalyzedAt.UTC().Format("2006-01-02 15:04:05"),
			r.WebsiteName,
			r.WebsiteURL,
			r.QuestionText,
			r.LLMService,
			r.ResponseText,
			r.AccuracyScore,
			yesNo(r.MisrepresentationDetected),
			r.Confidence,
			yesNo(r.Degraded),
			r.AnalysisSummary,
			strings.Join(r.SpecificIssues, "; "),
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	for col, width := range map[string]float64{"C": 28, "D": 36, "E": 48, "G": 60, "L": 60, "M": 40} {
		if err := f.SetColWidth(ResultsSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	if stats != nil {
		if err := writeSummary(f, stats, header); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, stats *models.DashboardStats, header int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Active websites", stats.ActiveWebsites},
		{"Total analyses", stats.TotalAnalyses},
		{"Total misrepresentations", stats.TotalMisrepresentations},
		{"Analyses in last 24h", stats.RecentActivity24h},
		{"Average accuracy", stats.AverageAccuracy},
		{"Misrepresentation rate (%)", stats.MisrepresentationRate},
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", header); err != nil {
		return fmt.Errorf("failed to style summary header: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "A", 30)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
