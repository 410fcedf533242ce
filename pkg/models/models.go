package models

import "time"

// Kind classifies a scheduled movement as arriving at or departing from the airport.
type Kind string

const (
	KindArrival   Kind = "Arrival"
	KindDeparture Kind = "Departure"
)

// FlightRecord represents one row of the airport flight board.
type FlightRecord struct {
	Kind         Kind      `json:"type"`
	ScheduledAt  time.Time `json:"scheduled"`
	FlightNumber string    `json:"flightNo"`
	City         string    `json:"city"`
	Airline      string    `json:"airline"`
	Status       string    `json:"status"`
}

// Freshness indicates whether the cached schedule is within its validity
// window and was produced by a successful fetch.
type Freshness string

const (
	Fresh Freshness = "Fresh"
	Stale Freshness = "Stale"
)
