package analytics

import "github.com/mamadbah2/bustrack/internal/domain/models"

// ArrivalSamples adapts raw arrivals: one sample per arrival, counted as one trip.
func ArrivalSamples(records []models.ArrivalRecord) []Sample {
	samples := make([]Sample, 0, len(records))
	for _, r := range records {
		onTime := 0.0
		if r.Status == models.StatusOnTime {
			onTime = 100
		}
		samples = append(samples, Sample{
			At:         r.ArrivalTimestamp,
			RouteID:    r.RouteID,
			StopName:   r.StopName,
			Status:     r.Status,
			Delay:      float64(r.Delay),
			OnTime:     onTime,
			Passengers: r.PassengerCount,
			Trips:      1,
		})
	}
	return samples
}

// DailySamples adapts daily documents: one sample per route-day carrying the
// stored daily means, so averaging the samples yields a mean of daily means.
func DailySamples(docs []models.DailyAnalytics) []Sample {
	samples := make([]Sample, 0, len(docs))
	for _, d := range docs {
		samples = append(samples, Sample{
			At:         d.Date,
			RouteID:    d.RouteID,
			Delay:      d.Metrics.AverageDelay,
			OnTime:     d.Metrics.OnTimePercentage,
			Passengers: d.Metrics.TotalPassengers,
			Trips:      d.Metrics.TotalTrips,
		})
	}
	return samples
}

// IssueHistogram counts unresolved issues by severity.
type IssueHistogram struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// UnresolvedIssues builds the severity histogram of the open issues in docs.
func UnresolvedIssues(docs []models.DailyAnalytics) IssueHistogram {
	var h IssueHistogram
	for _, d := range docs {
		for _, issue := range d.Issues {
			if issue.Resolved {
				continue
			}
			switch issue.Severity {
			case models.SeverityLow:
				h.Low++
			case models.SeverityMedium:
				h.Medium++
			case models.SeverityHigh:
				h.High++
			case models.SeverityCritical:
				h.Critical++
			}
		}
	}
	return h
}
