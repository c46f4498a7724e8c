package handlers

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	sheetDetections = "Detections"
	sheetSensors    = "Sensors"
	sheetActuators  = "Actuators"
)

var (
	detectionHeader = []string{"Seq", "Recorded At", "Detection ID", "Image", "Pests", "Classes", "Failed", "Error", "Actions"}
	sensorHeader    = []string{"Seq", "Recorded At", "Sensor", "Type", "Value", "Unit", "Status", "Error"}
	actuatorHeader  = []string{"Seq", "Recorded At", "Relay", "Active", "Last Triggered", "Release At"}
)

// buildHistoryWorkbook renders events into one sheet per kind, oldest row
// last as received.
func buildHistoryWorkbook(events []models.Event) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	rows := map[string][][]any{}
	for _, e := range events {
		switch {
		case e.Detection != nil:
			rows[sheetDetections] = append(rows[sheetDetections], detectionRow(e))
		case e.Sensor != nil:
			rows[sheetSensors] = append(rows[sheetSensors], sensorRow(e))
		case e.Actuator != nil:
			rows[sheetActuators] = append(rows[sheetActuators], actuatorRow(e))
		}
	}

	for i, sheet := range []struct {
		name   string
		header []string
	}{
		{sheetDetections, detectionHeader},
		{sheetSensors, sensorHeader},
		{sheetActuators, actuatorHeader},
	} {
		index, err := f.NewSheet(sheet.name)
		if err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, sheet.name, sheet.header, rows[sheet.name]); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("set header cell %s!%s: %w", sheet, cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("set header style: %w", err)
		}
	}
	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return fmt.Errorf("convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
			}
		}
	}
	// keep the header visible while scrolling
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func formatCellTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func detectionRow(e models.Event) []any {
	d := e.Detection
	classes := make([]string, 0, len(d.Findings))
	for _, f := range d.Findings {
		classes = append(classes, fmt.Sprintf("%s (%.2f)", f.ClassName, f.Confidence))
	}
	actions := make([]string, 0, len(d.Actions))
	for _, a := range d.Actions {
		actions = append(actions, a.RelayID+":"+a.Outcome)
	}
	return []any{
		e.Seq, formatCellTime(e.RecordedAt), d.ID, d.ImageRef, d.TotalDetections,
		strings.Join(classes, ", "), d.Failed, d.Error, strings.Join(actions, ", "),
	}
}

func sensorRow(e models.Event) []any {
	r := e.Sensor
	var value any = ""
	if r.Value != nil {
		value = *r.Value
	}
	return []any{e.Seq, formatCellTime(e.RecordedAt), r.Name, r.Type, value, r.Unit, r.Status, r.Error}
}

func actuatorRow(e models.Event) []any {
	a := e.Actuator
	return []any{e.Seq, formatCellTime(e.RecordedAt), a.RelayID, a.Active, formatCellTime(a.LastTriggered), formatCellTime(a.ReleaseAt)}
}
