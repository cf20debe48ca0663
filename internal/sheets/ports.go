package sheets

import (
	"context"

	"mileage/internal/core"
)

// Ports for outbound adapters.
type (
	// ClaimWriter appends the rows of a submission to a finance sheet.
	ClaimWriter interface {
		AppendClaims(ctx context.Context, s core.Submission) (rowRef string, err error)
	}

	// ClaimSubmitter hands a finished claim batch to the finance team and
	// returns a reference the user can quote.
	ClaimSubmitter interface {
		Submit(ctx context.Context, s core.Submission) (ref string, err error)
	}
)

// Header is the column order of a finance sheet.
var Header = []any{
	"Reference", "Submitted by", "Date", "From", "To",
	"Miles", "Vehicle", "Purpose", "Rate", "Reimbursement",
}

// Rows flattens a submission into one sheet row per entry, in Header order.
// Free text is escaped because the rows are written as user input.
func Rows(s core.Submission) [][]any {
	rows := make([][]any, 0, len(s.Entries))
	for _, e := range s.Entries {
		rows = append(rows, []any{
			s.Reference,
			core.SpreadsheetText(s.SubmittedBy),
			e.Date.String(),
			core.SpreadsheetText(e.From),
			core.SpreadsheetText(e.To),
			e.Miles.StringFixed(core.MilesPlaces),
			e.VehicleType.Label(),
			core.SpreadsheetText(e.Purpose),
			e.Rate.String(),
			e.Reimbursement.StringFixed(core.MoneyPlaces),
		})
	}
	return rows
}
