// Package report выгрузки для администратора.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
)

const timeLayout = "2006-01-02 15:04"

var subscriberHeader = []interface{}{
	"id",
	"telegram_id",
	"username",
	"pincode",
	"age_band",
	"alerts_enabled",
	"last_alert_sent_at",
	"total_alerts_sent",
	"deleted_at",
	"created_at",
}

// Subscribers xlsx со всеми подписчиками, время в зоне loc.
func Subscribers(list []subscribers.Subscriber, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Subscribers"
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return nil, err
	}

	header := subscriberHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	for i, s := range list {
		row := []interface{}{
			s.ID,
			s.TelegramID,
			s.Username,
			s.Pincode,
			s.AgeBand.String(),
			s.AlertsEnabled,
			formatTime(s.LastAlertSentAt, loc),
			s.TotalAlertsSent,
			"",
			formatTime(s.CreatedAt, loc),
		}
		if s.DeletedAt != nil {
			row[8] = formatTime(*s.DeletedAt, loc)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(sheet, "C", "C", 20)
	_ = f.SetColWidth(sheet, "G", "J", 18)

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName имя файла выгрузки.
func FileName(now time.Time) string {
	return fmt.Sprintf("subscribers_%s.xlsx", now.Format("20060102_150405"))
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}
