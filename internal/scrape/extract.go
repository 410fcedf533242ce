// Package scrape fetches the airport flight-board page and converts its
// table rows into flight records.
package scrape

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sh3rwan/erbil-api/pkg/models"
)

// ---------------------------------------------------------------------------
// Source Profile
// ---------------------------------------------------------------------------

// Field names a column of the flight table. The ordered Columns list in a
// Profile maps table cell positions to record fields, so a page-shape change
// upstream is a configuration edit rather than a code change.
type Field string

const (
	FieldTime    Field = "time"
	FieldFlight  Field = "flight"
	FieldCity    Field = "city"
	FieldAirline Field = "airline"
	FieldStatus  Field = "status"

	// FieldSkip discards a column (gate numbers, icons, etc).
	FieldSkip Field = "-"
)

// Profile describes the shape of one source page. Classification of rows is
// structural when the page exposes separate arrival/departure tables or row
// marker classes, and falls back to keyword matching on the status text.
type Profile struct {
	// RowSelector selects rows of a combined flight table.
	RowSelector string `yaml:"rowSelector"`

	// ArrivalRows/DepartureRows select rows of separate per-kind tables.
	// When set they take precedence over RowSelector.
	ArrivalRows   string `yaml:"arrivalRows"`
	DepartureRows string `yaml:"departureRows"`

	// ArrivalClass/DepartureClass are row marker classes on a combined table.
	ArrivalClass   string `yaml:"arrivalClass"`
	DepartureClass string `yaml:"departureClass"`

	// Columns maps cell position to record field, in table order.
	Columns []Field `yaml:"columns"`

	// TimeLayouts are the clock layouts tried against the time cell.
	TimeLayouts []string `yaml:"timeLayouts"`

	// Timezone is the IANA zone the board's clock times are displayed in.
	Timezone string `yaml:"timezone"`
}

// DefaultProfile returns the profile for the Erbil International Airport
// flight board.
func DefaultProfile() Profile {
	return Profile{
		RowSelector:    "table.flight-table tbody tr",
		ArrivalClass:   "arrival",
		DepartureClass: "departure",
		Columns:        []Field{FieldTime, FieldFlight, FieldCity, FieldAirline, FieldStatus},
		TimeLayouts:    []string{"15:04", "3:04 PM"},
		Timezone:       "Asia/Baghdad",
	}
}

// Location resolves the profile's timezone, defaulting to UTC when the zone
// is unset or unknown.
func (p Profile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ---------------------------------------------------------------------------
// Status Keyword Classification
// ---------------------------------------------------------------------------

// statusKeywords is the lexical fallback table used when a row carries no
// structural arrival/departure marker. Matching is case-insensitive on
// substrings of the status text.
var statusKeywords = []struct {
	words []string
	kind  models.Kind
}{
	{[]string{"arriv", "landed", "landing", "diverted"}, models.KindArrival},
	{[]string{"depart", "boarding", "gate", "check-in", "scheduled", "final call"}, models.KindDeparture},
}

// ClassifyStatus infers the movement kind from free-text status. The second
// return is false when no keyword matches; such rows are skipped.
func ClassifyStatus(status string) (models.Kind, bool) {
	s := strings.ToLower(status)
	for _, entry := range statusKeywords {
		for _, w := range entry.words {
			if strings.Contains(s, w) {
				return entry.kind, true
			}
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Row Extraction
// ---------------------------------------------------------------------------

// Extract walks the parsed page and returns one record per qualifying row.
// It never fails: rows with the wrong column count, an unparseable time, or
// no resolvable kind are skipped. A missing table yields an empty slice,
// which callers must distinguish from "no flights" by logging only.
func Extract(doc *goquery.Document, p Profile, now time.Time) []models.FlightRecord {
	loc := p.Location()
	now = now.In(loc)

	var records []models.FlightRecord

	if p.ArrivalRows != "" || p.DepartureRows != "" {
		// Structural: separate tables per kind.
		if p.ArrivalRows != "" {
			doc.Find(p.ArrivalRows).Each(func(_ int, row *goquery.Selection) {
				if rec, ok := extractRow(row, p, now, loc, models.KindArrival); ok {
					records = append(records, rec)
				}
			})
		}
		if p.DepartureRows != "" {
			doc.Find(p.DepartureRows).Each(func(_ int, row *goquery.Selection) {
				if rec, ok := extractRow(row, p, now, loc, models.KindDeparture); ok {
					records = append(records, rec)
				}
			})
		}
		return records
	}

	doc.Find(p.RowSelector).Each(func(_ int, row *goquery.Selection) {
		kind, ok := classifyRow(row, p)
		if rec, rowOK := extractRow(row, p, now, loc, kind); rowOK {
			if !ok {
				// No structural marker: fall back to status keywords.
				rec.Kind, ok = ClassifyStatus(rec.Status)
				if !ok {
					return
				}
			}
			records = append(records, rec)
		}
	})
	return records
}

// classifyRow checks the structural row marker classes.
func classifyRow(row *goquery.Selection, p Profile) (models.Kind, bool) {
	if p.ArrivalClass != "" && row.HasClass(p.ArrivalClass) {
		return models.KindArrival, true
	}
	if p.DepartureClass != "" && row.HasClass(p.DepartureClass) {
		return models.KindDeparture, true
	}
	return "", false
}

// extractRow maps a single table row onto a record. ok is false when the row
// does not match the configured column count or its time cell is unparseable.
func extractRow(row *goquery.Selection, p Profile, now time.Time, loc *time.Location, kind models.Kind) (models.FlightRecord, bool) {
	cells := row.Find("td")
	if cells.Length() < len(p.Columns) {
		return models.FlightRecord{}, false
	}

	rec := models.FlightRecord{Kind: kind}
	var timeText string
	for i, field := range p.Columns {
		text := strings.TrimSpace(cells.Eq(i).Text())
		switch field {
		case FieldTime:
			timeText = text
		case FieldFlight:
			rec.FlightNumber = text
		case FieldCity:
			rec.City = text
		case FieldAirline:
			rec.Airline = text
		case FieldStatus:
			rec.Status = text
		}
	}

	scheduled, ok := resolveClock(timeText, p.TimeLayouts, now, loc)
	if !ok {
		return models.FlightRecord{}, false
	}
	rec.ScheduledAt = scheduled
	return rec, true
}

// resolveClock parses a wall-clock time like "14:35" and anchors it to the
// current calendar date. A resolved instant already in the past rolls forward
// one day so late-evening boards spanning midnight stay in order.
func resolveClock(text string, layouts []string, now time.Time, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		clock, err := time.ParseInLocation(layout, text, loc)
		if err != nil {
			continue
		}
		resolved := time.Date(now.Year(), now.Month(), now.Day(),
			clock.Hour(), clock.Minute(), 0, 0, loc)
		if resolved.Before(now) {
			resolved = resolved.AddDate(0, 0, 1)
		}
		return resolved, true
	}
	return time.Time{}, false
}
