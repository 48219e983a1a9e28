package performance

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// RenderReport writes a one page PDF summary of ev to w.
func RenderReport(w io.Writer, ev Evaluation) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Performance evaluation %s", ev.EmployeeEmpID), true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Performance Evaluation")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	line := func(format string, args ...any) {
		pdf.Cell(0, 7, fmt.Sprintf(format, args...))
		pdf.Ln(6)
	}
	line("Employee: %s (%s)", ev.EmployeeName, ev.EmployeeEmpID)
	line("Department: %s", orDash(ev.DepartmentName))
	line("Evaluator: %s", orDash(ev.EvaluatorName))
	line("Type: %s", ev.EvaluationType)
	if ev.ReviewDate != nil {
		line("Review date: %s", ev.ReviewDate.Format("2006-01-02"))
	}
	line("Period: Week %d, %d %s", ev.WeekNumber, ev.Year, ev.EvaluationPeriod)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(70, 8, "Metric", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Score", "1", 0, "C", false, 0, "")
	pdf.CellFormat(100, 8, "Comment", "1", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, m := range Metrics() {
		score := "-"
		if ev.Scores[m] != nil {
			score = fmt.Sprintf("%d", *ev.Scores[m])
		}
		pdf.CellFormat(70, 7, metricLabel(m), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, score, "1", 0, "C", false, 0, "")
		pdf.CellFormat(100, 7, truncate(ev.Comments[m], 60), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	line("Total: %s", ScoreDisplay(ev.TotalScore))
	line("Average: %.2f (%s)", ev.AverageScore, ScoreCategory(ev.AverageScore))
	if ev.Rank != nil {
		line("Rank: %d", *ev.Rank)
	}
	if ev.Remarks != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, "Remarks: "+ev.Remarks, "", "L", false)
	}

	return pdf.Output(w)
}

func metricLabel(m Metric) string {
	words := strings.Split(m.Name(), "_")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
