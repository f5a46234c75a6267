package arrivals

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mamadbah2/bustrack/internal/domain/models"
)

var csvHeader = []string{
	"Route ID", "Bus Number", "Stop Name", "Scheduled Time", "Actual Time", "Delay", "Status",
	"Occupancy", "Passenger Count", "Driver Notes", "Weather", "Traffic Condition", "Arrival Timestamp",
}

// WriteCSV renders arrivals in the export column order.
func WriteCSV(w io.Writer, records []models.ArrivalRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.RouteID,
			r.BusNumber,
			r.StopName,
			r.ScheduledTime,
			r.ActualTime,
			strconv.Itoa(r.Delay),
			string(r.Status),
			r.Occupancy,
			strconv.Itoa(r.PassengerCount),
			r.DriverNotes,
			r.Weather,
			r.TrafficCondition,
			r.ArrivalTimestamp.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", r.ID.Hex(), err)
		}
	}

	writer.Flush()
	return writer.Error()
}
