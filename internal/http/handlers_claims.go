package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"mileage/internal/core"
	"mileage/internal/export"
	"mileage/internal/log"
	"mileage/internal/session"
)

type claimRow struct {
	Date    string
	From    string
	To      string
	Miles   string
	Vehicle string
	Purpose string
	Rate    string
	Amount  string
}

type claimsData struct {
	Rows               []claimRow
	Count              int
	TotalMiles         string
	TotalReimbursement string
	CanSubmit          bool
}

func (s *Server) claimsView(sess *session.Session, f formatter) claimsData {
	entries := sess.Ledger.Entries()
	summary := core.Summarize(entries)

	data := claimsData{
		Rows:               make([]claimRow, 0, len(entries)),
		Count:              summary.Count,
		TotalMiles:         f.Miles(summary.TotalMiles),
		TotalReimbursement: f.Money(summary.TotalReimbursement),
		CanSubmit:          s.submitter != nil && summary.Count > 0,
	}
	for _, e := range entries {
		data.Rows = append(data.Rows, claimRow{
			Date:    e.Date.String(),
			From:    e.From,
			To:      e.To,
			Miles:   f.Miles(e.Miles),
			Vehicle: e.VehicleType.Label(),
			Purpose: e.Purpose,
			Rate:    f.Rate(e.Rate),
			Amount:  f.Money(e.Reimbursement),
		})
	}
	return data
}

// validationMessage turns a validation error into a sentence for the user.
func validationMessage(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		err = ve.Err
	}
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}

// handleCreateClaim adds one journey to the session ledger.
func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}
	if rb := ParseFormOrFail(r); rb != nil {
		rb.Write(w)
		return
	}

	ctx := r.Context()
	in, err := ParseEntryForm(r.PostForm)
	if err == nil {
		var entry core.Entry
		doc := s.settings.Current()
		entry, err = sess.Ledger.Add(in, doc.Rates)
		if err == nil {
			s.appMetrics.entriesCreated.Add(1)
			s.events.LogEntryCreated(ctx, sess.ID, sess.User, entry)

			f := newFormatter(doc.Business.CurrencySymbol)
			SuccessResponse("Mileage claim added successfully! Reimbursement: " + f.Money(entry.Reimbursement)).
				TriggerClaimsChanged(sess.Ledger.Len()).
				TriggerFormReset().
				Write(w)
			return
		}
	}

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		s.appMetrics.validationFailures.Add(1)
		log.FromContext(ctx).InfoContext(ctx, "Mileage entry rejected",
			log.FieldOperation, log.OpValidate,
			log.FieldErrorType, log.ErrorTypeValidation,
			"field", ve.Field,
			log.FieldError, ve.Err)
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	s.events.LogError(ctx, "Failed to add mileage entry", err, log.ComponentLedger, log.OpCreate, nil)
	InternalServerError("Could not add the claim").Write(w)
}

// handleClaimsPartial renders the claims table and summary.
func (s *Server) handleClaimsPartial(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}
	f := newFormatter(s.settings.Current().Business.CurrencySymbol)
	s.render(w, r, http.StatusOK, "claims.html", s.claimsView(sess, f))
}

type estimateData struct {
	Amount string
	Miles  string
	Rate   string
}

// handleEstimate previews the reimbursement for the miles and vehicle
// currently in the form. Incomplete input renders nothing.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}
	q := r.URL.Query()
	miles, err := core.ParseMiles(q.Get(fieldMiles))
	if err != nil || !miles.IsPositive() {
		NewHTMXResponse().BodyHTML("").Write(w)
		return
	}
	vehicle, err := core.ParseVehicleType(q.Get(fieldVehicleType))
	if err != nil {
		NewHTMXResponse().BodyHTML("").Write(w)
		return
	}

	doc := s.settings.Current()
	amount, err := core.Reimbursement(doc.Rates, vehicle, miles)
	if err != nil {
		NewHTMXResponse().BodyHTML("").Write(w)
		return
	}
	rate, _ := doc.Rates.For(vehicle)

	f := newFormatter(doc.Business.CurrencySymbol)
	s.render(w, r, http.StatusOK, "estimate.html", estimateData{
		Amount: f.Money(amount),
		Miles:  f.Miles(miles),
		Rate:   f.Rate(rate),
	})
}

// handleClearClaims empties the session ledger.
func (s *Server) handleClearClaims(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}
	removed := sess.Ledger.Len()
	sess.Ledger.Clear()
	s.appMetrics.ledgersCleared.Add(1)
	s.events.LogLedgerCleared(r.Context(), sess.ID, sess.User, removed)

	SuccessResponse("All claims cleared").
		TriggerClaimsChanged(0).
		Write(w)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.writeExport(w, r, sess, "json", "application/json", export.WriteJSON)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.writeExport(w, r, sess, "csv", "text/csv; charset=utf-8", export.WriteCSV)
}

func (s *Server) writeExport(w http.ResponseWriter, r *http.Request, sess *session.Session, ext, contentType string, write func(io.Writer, []core.Entry) error) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}
	entries := sess.Ledger.Entries()

	var buf bytes.Buffer
	if err := write(&buf, entries); err != nil {
		s.events.LogError(r.Context(), "Failed to export claims", err, log.ComponentHTTP, log.OpExport, nil)
		InternalServerError("Could not export claims").Write(w)
		return
	}

	filename := fmt.Sprintf("mileage-claims-%s.%s", core.DateOf(s.now()), ext)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Claims exported",
		log.FieldOperation, log.OpExport,
		log.FieldEntryCount, len(entries),
		"format", ext)

	NewHTMXResponse().
		Header("Content-Type", contentType).
		Header("Content-Disposition", `attachment; filename="`+filename+`"`).
		Body(buf.Bytes()).
		Write(w)
}

// handleSubmitClaims hands a snapshot of the ledger to the configured
// backend. The ledger itself is left as it is.
func (s *Server) handleSubmitClaims(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}
	if s.submitter == nil {
		ServiceUnavailableError("Claim submission is not configured").Write(w)
		return
	}

	entries := sess.Ledger.Entries()
	if len(entries) == 0 {
		UnprocessableEntityError("No claims to submit. Add a claim first.").Write(w)
		return
	}

	doc := s.settings.Current()
	sub := core.NewSubmission(s.newRef(), sess.User, s.now(), doc.Business, entries)

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()

	ref, err := s.submitter.Submit(ctx, sub)
	if err != nil {
		s.appMetrics.submitFailures.Add(1)
		s.events.LogError(r.Context(), "Failed to submit claims", err, log.ComponentBackend, log.OpSubmit,
			log.NewFields().WithSession(sess.ID, sess.User))
		if errors.Is(err, core.ErrEmptySubmission) {
			UnprocessableEntityError(validationMessage(err)).Write(w)
			return
		}
		BadGatewayError("Could not submit claims: " + err.Error()).
			TriggerErrorNotification("Claims were not submitted").
			Write(w)
		return
	}

	s.appMetrics.submissions.Add(1)
	s.events.LogClaimsSubmitted(r.Context(), sess.ID, sess.User, ref, sub.Summary)

	f := newFormatter(doc.Business.CurrencySymbol)
	noun := "claims"
	if sub.Summary.Count == 1 {
		noun = "claim"
	}
	msg := fmt.Sprintf("Submitted %d %s totalling %s to %s. Reference: %s",
		sub.Summary.Count, noun, f.Money(sub.Summary.TotalReimbursement),
		strings.TrimSpace(doc.Business.FinanceEmail), ref)
	SuccessResponse(msg).
		TriggerSuccessNotification("Claims submitted").
		Write(w)
}
