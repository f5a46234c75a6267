package models

// ApplyPatch copies the present fields of p onto r.
func (r *ArrivalRecord) ApplyPatch(p ArrivalPatch) {
	if p.RouteID != nil {
		r.RouteID = *p.RouteID
	}
	if p.BusNumber != nil {
		r.BusNumber = *p.BusNumber
	}
	if p.StopName != nil {
		r.StopName = *p.StopName
	}
	if p.ScheduledTime != nil {
		r.ScheduledTime = *p.ScheduledTime
	}
	if p.ActualTime != nil {
		r.ActualTime = *p.ActualTime
	}
	if p.Location != nil && p.Location.Lat != nil && p.Location.Lng != nil {
		r.Location = GeoPoint{Lat: *p.Location.Lat, Lng: *p.Location.Lng}
	}
	if p.Occupancy != nil {
		r.Occupancy = *p.Occupancy
	}
	if p.PassengerCount != nil {
		r.PassengerCount = *p.PassengerCount
	}
	if p.DriverNotes != nil {
		r.DriverNotes = *p.DriverNotes
	}
	if p.Weather != nil {
		r.Weather = *p.Weather
	}
	if p.TrafficCondition != nil {
		r.TrafficCondition = *p.TrafficCondition
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
}
