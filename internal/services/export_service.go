package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportService renders a user's session history as an xlsx workbook.
type ExportService struct {
	sessions *SessionService
}

// NewExportService creates a new export service.
func NewExportService(sessions *SessionService) *ExportService {
	return &ExportService{sessions: sessions}
}

// SessionsXLSX builds a workbook with one row per finalized session
// plus a check-in detail sheet.
func (s *ExportService) SessionsXLSX(ctx context.Context, userID string) (*bytes.Buffer, error) {
	sessions, err := s.sessions.List(ctx, userID, 200, 0)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sessions"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Started", "Subject", "Planned (min)", "Actual (min)", "Status", "Check-ins", "Focused", "Accuracy (%)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, session := range sessions {
		row := i + 2
		values := []interface{}{
			session.StartTimestamp.Format(time.RFC3339),
			session.Subject,
			session.PlannedDurationMinutes,
			session.ActualDurationMinutes,
			session.Status,
			session.TotalCheckins,
			session.SuccessfulCheckins,
			session.FocusAccuracy,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	const detail = "Check-ins"
	if _, err := f.NewSheet(detail); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}
	detailHeaders := []string{"Session", "Subject", "Timestamp", "Focused", "Response (s)"}
	for i, h := range detailHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(detail, cell, h)
	}

	row := 2
	for _, session := range sessions {
		checkIns, err := s.sessions.ListCheckIns(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		for _, ci := range checkIns {
			values := []interface{}{
				session.ID,
				session.Subject,
				ci.Timestamp.Format(time.RFC3339),
				boolCell(ci.WasFocused),
				ci.ResponseTimeSeconds,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(detail, cell, v)
			}
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf, nil
}

func boolCell(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
