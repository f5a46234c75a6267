package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/repository/sheets"
	"github.com/mamadbah2/bustrack/internal/service/analytics"
	"github.com/mamadbah2/bustrack/internal/timeutil"
	"github.com/mamadbah2/bustrack/pkg/clients/webhook"
)

// Source provides the figures a digest is built from.
type Source interface {
	DashboardSummary(ctx context.Context, date string) (analytics.Dashboard, error)
	OnTimeRate(ctx context.Context, r timeutil.Range) (analytics.Overall, error)
}

// Store persists built digests.
type Store interface {
	SaveDigest(ctx context.Context, digest *models.DailyDigest) error
}

// Channels lists the optional delivery targets. Nil members are skipped.
type Channels struct {
	Webhook webhook.Client
	Sheet   sheets.Repository
}

// Service builds the daily fleet digest and fans it out to its channels.
type Service struct {
	source   Source
	store    Store
	channels Channels
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(source Source, store Store, channels Channels, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		source:   source,
		store:    store,
		channels: channels,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

// BuildDigest assembles the digest of the calendar day containing day.
func (s *Service) BuildDigest(ctx context.Context, day time.Time) (*models.DailyDigest, error) {
	date := timeutil.StartOfDay(day, s.location).Format(timeutil.DateLayout)

	dashboard, err := s.source.DashboardSummary(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load dashboard for %s: %w", date, err)
	}

	window, err := timeutil.ExplicitRange(date, date, s.location)
	if err != nil {
		return nil, err
	}
	rate, err := s.source.OnTimeRate(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("load arrivals for %s: %w", date, err)
	}

	issues := dashboard.Issues
	digest := &models.DailyDigest{
		Date:             date,
		TotalRoutes:      dashboard.TotalRoutes,
		ActiveRoutes:     dashboard.ActiveRoutes,
		ReportingRoutes:  dashboard.ReportingRoutes,
		TotalTrips:       dashboard.TotalTrips,
		TotalPassengers:  dashboard.TotalPassengers,
		AverageDelay:     dashboard.AverageDelay,
		TotalArrivals:    rate.TotalArrivals,
		OnTimeArrivals:   rate.TotalOnTime,
		DelayedArrivals:  rate.TotalDelayed,
		OnTimePercentage: rate.OnTimePercentage,
		OpenIssues:       issues.Low + issues.Medium + issues.High + issues.Critical,
		CriticalIssues:   issues.Critical,
		CreatedAt:        s.now().In(s.location),
	}
	digest.Text = formatDigest(digest)
	return digest, nil
}

// SendPreviousDay builds the digest of yesterday and delivers it. Every
// channel is attempted; the returned error joins the failures.
func (s *Service) SendPreviousDay(ctx context.Context) (*models.DailyDigest, error) {
	digest, err := s.BuildDigest(ctx, s.now().In(s.location).AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	return digest, s.Deliver(ctx, digest)
}

// Deliver stores the digest and forwards it to the configured channels.
func (s *Service) Deliver(ctx context.Context, digest *models.DailyDigest) error {
	var errs []error

	if err := s.store.SaveDigest(ctx, digest); err != nil {
		errs = append(errs, fmt.Errorf("save digest: %w", err))
	}

	if s.channels.Webhook != nil {
		payload := map[string]any{"text": digest.Text, "digest": digest}
		if err := s.channels.Webhook.Post(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("post digest: %w", err))
		} else {
			s.logger.Info("digest posted to webhook", zap.String("date", digest.Date))
		}
	}

	if s.channels.Sheet != nil {
		if err := s.channels.Sheet.AppendDigest(ctx, digest); err != nil {
			errs = append(errs, fmt.Errorf("append digest row: %w", err))
		}
	}

	return errors.Join(errs...)
}

func formatDigest(d *models.DailyDigest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Fleet digest %s\n", d.Date)
	if d.ReportingRoutes == 0 && d.TotalArrivals == 0 {
		fmt.Fprintf(&b, "No activity recorded (%d routes configured, %d active).", d.TotalRoutes, d.ActiveRoutes)
		return b.String()
	}

	fmt.Fprintf(&b, "Routes: %d reporting of %d active (%d configured).\n", d.ReportingRoutes, d.ActiveRoutes, d.TotalRoutes)
	fmt.Fprintf(&b, "Trips: %d carrying %d passengers, average delay %.2f min.\n", d.TotalTrips, d.TotalPassengers, d.AverageDelay)
	if d.TotalArrivals > 0 {
		fmt.Fprintf(&b, "Arrivals: %d logged, %d on time, %d delayed (%.2f%% on time).\n",
			d.TotalArrivals, d.OnTimeArrivals, d.DelayedArrivals, d.OnTimePercentage)
	} else {
		b.WriteString("Arrivals: none logged.\n")
	}
	if d.OpenIssues > 0 {
		fmt.Fprintf(&b, "Open issues: %d (%d critical).", d.OpenIssues, d.CriticalIssues)
	} else {
		b.WriteString("Open issues: none.")
	}

	return b.String()
}
