package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/bustrack/internal/config"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/timeutil"
)

// Repository defines the digest operations supported by the Google Sheets adapter.
type Repository interface {
	AppendDigest(ctx context.Context, digest *models.DailyDigest) error
}

// GoogleSheetRepository keeps one row per digest date in the digest range.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	digestRange   string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository for the digest spreadsheet.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}
	return newRepository(service, cfg.SpreadsheetID, cfg.DigestRange, logger)
}

func newRepository(service *sheetsapi.Service, spreadsheetID, digestRange string, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if digestRange == "" {
		return nil, fmt.Errorf("digest range must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: spreadsheetID,
		digestRange:   digestRange,
		logger:        logger,
	}, nil
}

// AppendDigest writes the digest row unless the sheet already has one for its date.
func (r *GoogleSheetRepository) AppendDigest(ctx context.Context, digest *models.DailyDigest) error {
	rows, err := r.readRows(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if len(row) > 0 && sameDate(row[0], digest.Date) {
			r.logger.Debug("digest row already present", zap.String("date", digest.Date))
			return nil
		}
	}

	if err := r.appendRow(ctx, digestRow(digest)); err != nil {
		return err
	}
	r.logger.Info("digest row appended", zap.String("date", digest.Date), zap.String("range", r.digestRange))
	return nil
}

func (r *GoogleSheetRepository) appendRow(ctx context.Context, values []interface{}) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, r.digestRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", r.digestRange, err)
	}
	return nil
}

func (r *GoogleSheetRepository) readRows(ctx context.Context) ([][]interface{}, error) {
	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, r.digestRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", r.digestRange, err)
	}
	return resp.Values, nil
}

// digestRow flattens a digest into sheet cells, date first.
func digestRow(d *models.DailyDigest) []interface{} {
	return []interface{}{
		d.Date,
		d.ReportingRoutes,
		d.TotalTrips,
		d.TotalPassengers,
		d.AverageDelay,
		d.TotalArrivals,
		d.OnTimePercentage,
		d.OpenIssues,
	}
}

// sameDate compares a sheet cell against an ISO date. Cells may carry a time suffix.
func sameDate(value interface{}, date string) bool {
	str := strings.TrimSpace(fmt.Sprint(value))
	if len(str) > len(timeutil.DateLayout) {
		str = str[:len(timeutil.DateLayout)]
	}
	return str == date
}
