// Package analytics records conversation turns the bot could not handle
// into a Google Sheet, so unhandled phrasings can be reviewed and folded
// back into the flow.
package analytics

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/figarolabs/figaro-booking/pkg/logging"
)

const (
	appendRange      = "A2:D"
	valueInputOption = "USER_ENTERED"
	fallbackNote     = "Fallback triggered"
)

// SheetsRecorder appends fallback rows to one spreadsheet.
type SheetsRecorder struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *logging.Logger
	now           func() time.Time
}

// NewSheetsRecorder creates a recorder bound to a spreadsheet.
func NewSheetsRecorder(svc *sheets.Service, spreadsheetID string, logger *logging.Logger) *SheetsRecorder {
	if svc == nil {
		panic("analytics: sheets service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SheetsRecorder{svc: svc, spreadsheetID: spreadsheetID, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source.
func (r *SheetsRecorder) WithClock(now func() time.Time) *SheetsRecorder {
	if now != nil {
		r.now = now
	}
	return r
}

// RecordFallback appends one row: timestamp, step id, the user's raw text,
// and a fixed marker column.
func (r *SheetsRecorder) RecordFallback(ctx context.Context, stepID, rawText string) error {
	row := []any{r.now().Format(time.RFC3339), stepID, rawText, fallbackNote}

	_, err := r.svc.Spreadsheets.Values.
		Append(r.spreadsheetID, appendRange, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("analytics: append fallback row: %w", err)
	}
	r.logger.Debug("fallback recorded", "step_id", stepID)
	return nil
}
