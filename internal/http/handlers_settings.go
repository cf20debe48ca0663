package http

import (
	"errors"
	"net/http"

	"mileage/internal/core"
	"mileage/internal/log"
	"mileage/internal/session"
	"mileage/internal/settings"
)

type rateField struct {
	Key   string
	Label string
	Value string
}

type settingsData struct {
	User     string
	Business core.Business
	Rates    []rateField
	Path     string
	Success  string
	Warning  string
	Error    string
}

func (s *Server) settingsView(sess *session.Session, doc settings.Document) settingsData {
	data := settingsData{
		User:     sess.User,
		Business: doc.Business,
		Path:     s.settings.Path(),
	}
	for _, v := range core.VehicleTypes() {
		rate, _ := doc.Rates.For(v)
		data.Rates = append(data.Rates, rateField{
			Key:   settings.RateKey(v),
			Label: v.Label(),
			Value: rate.String(),
		})
	}
	return data
}

// handleSettings shows and updates the rates and business details. New
// values apply to entries added afterwards; existing entries keep the rate
// they were priced with.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if rb := RequireMethod(r, http.MethodGet, http.MethodPost); rb != nil {
		rb.Write(w)
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "settings.html", s.settingsView(sess, s.settings.Current()))
		return
	}

	if rb := ParseFormOrFail(r); rb != nil {
		rb.Write(w)
		return
	}
	ctx := r.Context()

	doc, err := ParseSettingsForm(r.PostForm)
	if err != nil {
		var ve *core.ValidationError
		if !errors.As(err, &ve) {
			s.events.LogError(ctx, "Failed to parse settings", err, log.ComponentSettings, log.OpValidate, nil)
		}
		data := s.settingsView(sess, s.settings.Current())
		data.Error = validationMessage(err)
		s.render(w, r, http.StatusUnprocessableEntity, "settings.html", data)
		return
	}
	if err := doc.Validate(); err != nil {
		data := s.settingsView(sess, s.settings.Current())
		data.Error = validationMessage(err)
		s.render(w, r, http.StatusUnprocessableEntity, "settings.html", data)
		return
	}

	data := s.settingsView(sess, doc)
	if err := s.settings.Save(doc); err != nil {
		// The store keeps the new values in memory even when the file
		// cannot be written.
		s.appMetrics.settingsSaveErrors.Add(1)
		data.Warning = "Settings are active for this run but could not be saved: " + err.Error()
	} else {
		data.Success = "Settings saved"
	}

	log.FromContext(ctx).InfoContext(ctx, "Settings updated",
		log.FieldOperation, log.OpSave,
		log.FieldSettingsPath, s.settings.Path(),
		log.FieldSuccess, data.Warning == "")
	s.render(w, r, http.StatusOK, "settings.html", data)
}
