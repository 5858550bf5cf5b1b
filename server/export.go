package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	apperrors "discoveryserver/server/errors"
	"discoveryserver/server/services"
	"discoveryserver/types"
)

// handleExportRun streams a completed run's outcome as an XLSX
// workbook: one sheet per verdict plus a summary.
func (s *Server) handleExportRun(c *gin.Context) {
	run, err := s.service.GetRun(c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	if run.Status != services.RunCompleted || run.Result == nil {
		s.handleError(c, apperrors.NewConflictError("run has no exportable result yet", nil))
		return
	}

	workbook, err := buildRunWorkbook(run)
	if err != nil {
		s.handleError(c, apperrors.NewInternalError("failed to build export", err))
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("discovery_%s.xlsx", run.ID)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		s.logger.Error("failed to stream export", "run_id", run.ID, "error", err)
	}
	c.Status(http.StatusOK)
}

func buildRunWorkbook(run services.DiscoveryRun) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeCandidateSheet(f, "Accepted", headerStyle, run.Result.Accepted); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeCandidateSheet(f, "Duplicates", headerStyle, run.Result.Duplicates); err != nil {
		f.Close()
		return nil, err
	}

	rejected := make([]types.LocationCandidate, 0, len(run.Result.Rejected))
	for _, r := range run.Result.Rejected {
		rejected = append(rejected, r.Candidate)
	}
	if err := writeCandidateSheet(f, "Rejected", headerStyle, rejected); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeSummarySheet(f, headerStyle, run); err != nil {
		f.Close()
		return nil, err
	}

	// The default sheet excelize creates is replaced by ours.
	f.DeleteSheet("Sheet1")
	if index, err := f.GetSheetIndex("Summary"); err == nil {
		f.SetActiveSheet(index)
	}

	return f, nil
}

func writeCandidateSheet(f *excelize.File, name string, headerStyle int, candidates []types.LocationCandidate) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	headers := []string{
		"Name", "Address", "Phone", "Website", "Cuisine",
		"Rating", "Reviews", "Price", "Source", "Confidence", "Issues",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(name, cell, header)
		f.SetCellStyle(name, cell, cell, headerStyle)
	}

	for rowIdx, c := range candidates {
		row := rowIdx + 2
		f.SetCellValue(name, fmt.Sprintf("A%d", row), c.Name)
		f.SetCellValue(name, fmt.Sprintf("B%d", row), c.Address)
		f.SetCellValue(name, fmt.Sprintf("C%d", row), c.Phone)
		f.SetCellValue(name, fmt.Sprintf("D%d", row), c.Website)
		f.SetCellValue(name, fmt.Sprintf("E%d", row), strings.Join(c.Cuisine, ", "))
		if c.Rating != nil {
			f.SetCellValue(name, fmt.Sprintf("F%d", row), *c.Rating)
		}
		if c.ReviewCount != nil {
			f.SetCellValue(name, fmt.Sprintf("G%d", row), *c.ReviewCount)
		}
		f.SetCellValue(name, fmt.Sprintf("H%d", row), c.PriceInfo.Display)
		f.SetCellValue(name, fmt.Sprintf("I%d", row), string(c.DiscoverySource))
		if c.Validation != nil {
			f.SetCellValue(name, fmt.Sprintf("J%d", row), c.Validation.Confidence)
			f.SetCellValue(name, fmt.Sprintf("K%d", row), strings.Join(c.Validation.Issues, "; "))
		}
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(name, col, col, 18)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, headerStyle int, run services.DiscoveryRun) error {
	const name = "Summary"
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	result := run.Result
	rows := [][2]any{
		{"Run ID", run.ID},
		{"Query", run.Query},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05")},
		{"Status", string(run.Status)},
		{"Phase", string(run.Phase)},
		{"Sources run", result.Stats.SourcesRun},
		{"Sources failed", result.Stats.SourcesFailed},
		{"Raw candidates", result.Stats.RawCandidates},
		{"Normalize errors", result.Stats.NormalizeErrors},
		{"Accepted", len(result.Accepted)},
		{"Duplicates", len(result.Duplicates)},
		{"Rejected", len(result.Rejected)},
		{"Duration", result.Stats.Duration.String()},
	}

	for i, row := range rows {
		f.SetCellValue(name, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(name, fmt.Sprintf("B%d", i+1), row[1])
		f.SetCellStyle(name, fmt.Sprintf("A%d", i+1), fmt.Sprintf("A%d", i+1), headerStyle)
	}
	f.SetColWidth(name, "A", "A", 20)
	f.SetColWidth(name, "B", "B", 30)
	return nil
}
