// Package export encodes ledger entries as JSON or CSV records.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"mileage/internal/core"
)

// Header is the field order shared by both encodings.
var Header = []string{
	"id", "date", "from_location", "to_location", "miles", "purpose",
	"vehicle_type", "rate", "reimbursement", "created_at",
}

// Record is the external shape of one entry.
type Record struct {
	ID            string      `json:"id"`
	Date          string      `json:"date"`
	FromLocation  string      `json:"from_location"`
	ToLocation    string      `json:"to_location"`
	Miles         json.Number `json:"miles"`
	Purpose       string      `json:"purpose"`
	VehicleType   string      `json:"vehicle_type"`
	Rate          json.Number `json:"rate"`
	Reimbursement json.Number `json:"reimbursement"`
	CreatedAt     string      `json:"created_at"`
}

// NewRecord converts an entry to its record form. Miles keep one decimal
// place and reimbursements two.
func NewRecord(e core.Entry) Record {
	return Record{
		ID:            e.ID,
		Date:          e.Date.String(),
		FromLocation:  e.From,
		ToLocation:    e.To,
		Miles:         json.Number(e.Miles.StringFixed(core.MilesPlaces)),
		Purpose:       e.Purpose,
		VehicleType:   e.VehicleType.String(),
		Rate:          json.Number(e.Rate.String()),
		Reimbursement: json.Number(e.Reimbursement.StringFixed(core.MoneyPlaces)),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

// row is the CSV form of r. Free text is escaped so spreadsheets do not
// evaluate it.
func (r Record) row() []string {
	return []string{
		r.ID, r.Date,
		core.SpreadsheetText(r.FromLocation), core.SpreadsheetText(r.ToLocation),
		r.Miles.String(), core.SpreadsheetText(r.Purpose),
		r.VehicleType, r.Rate.String(), r.Reimbursement.String(), r.CreatedAt,
	}
}

// WriteJSON writes entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []core.Entry) error {
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, NewRecord(e))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes a header row followed by one row per entry.
func WriteCSV(w io.Writer, entries []core.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(NewRecord(e).row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
