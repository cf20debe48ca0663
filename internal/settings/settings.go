// Package settings loads and saves the rates and business document that
// drives reimbursement calculations.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"mileage/internal/core"
	"mileage/internal/log"
)

const rateKeySuffix = "_rate_per_mile"

// Document is the configuration held by the store: per-vehicle rates and
// the business details shown to employees.
type Document struct {
	Rates    core.Rates
	Business core.Business
}

// Defaults returns the built-in document used when no file is present.
func Defaults() Document {
	return Document{
		Rates: core.DefaultRates(),
		Business: core.Business{
			CompanyName:    "The Hireman",
			FinanceEmail:   "finance@thehireman.co.uk",
			CurrencySymbol: "£",
		},
	}
}

// Validate checks that every vehicle type has a non-negative rate.
func (d Document) Validate() error {
	if err := d.Rates.Validate(); err != nil {
		return fmt.Errorf("rates: %w", err)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with d.
func (d Document) Clone() Document {
	return Document{Rates: d.Rates.Clone(), Business: d.Business}
}

// RateKey returns the on-disk key for the rate of v.
func RateKey(v core.VehicleType) string {
	return string(v) + rateKeySuffix
}

type fileDocument struct {
	Rates    map[string]json.Number `json:"rates,omitempty"`
	Business *core.Business         `json:"business,omitempty"`
}

// MarshalJSON writes the document in the on-disk shape, rates as JSON numbers.
func (d Document) MarshalJSON() ([]byte, error) {
	rates := make(map[string]json.Number, len(d.Rates))
	for v, rate := range d.Rates {
		rates[RateKey(v)] = json.Number(rate.String())
	}
	business := d.Business
	return json.Marshal(fileDocument{Rates: rates, Business: &business})
}

// UnmarshalJSON decodes the on-disk shape. Sections absent from the input are
// taken from Defaults wholesale; vehicles missing from a present rates
// section are backfilled from the default rates. Unknown rate keys are
// skipped here; the Store keeps them for the next Save.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw fileDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	defaults := Defaults()

	out := Document{Rates: defaults.Rates, Business: defaults.Business}
	if raw.Rates != nil {
		rates := make(core.Rates, len(core.VehicleTypes()))
		for key, num := range raw.Rates {
			name, ok := strings.CutSuffix(key, rateKeySuffix)
			if !ok {
				continue
			}
			v := core.VehicleType(name)
			if !v.Valid() {
				continue
			}
			rate, err := decimal.NewFromString(num.String())
			if err != nil {
				return fmt.Errorf("rate %s: %w", key, err)
			}
			rates[v] = rate
		}
		for _, v := range core.VehicleTypes() {
			if _, ok := rates[v]; !ok {
				rates[v] = defaults.Rates[v]
			}
		}
		out.Rates = rates
	}
	if raw.Business != nil {
		out.Business = *raw.Business
	}
	*d = out
	return nil
}

// extras is what the loaded file carried beyond the document: top-level
// sections and rate keys the service does not read. Save writes them back.
type extras struct {
	sections map[string]json.RawMessage
	rates    map[string]json.RawMessage
}

func readExtras(data []byte) (extras, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return extras{}, err
	}
	var rates map[string]json.RawMessage
	if raw, ok := top["rates"]; ok {
		if err := json.Unmarshal(raw, &rates); err != nil {
			return extras{}, err
		}
	}
	delete(top, "rates")
	delete(top, "business")
	for _, v := range core.VehicleTypes() {
		delete(rates, RateKey(v))
	}
	return extras{sections: top, rates: rates}, nil
}

// Store owns the current document and the file it is persisted to.
type Store struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	current Document
	extras  extras
}

// NewStore creates a store bound to path. The current document starts as
// Defaults until Load is called.
func NewStore(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		path:    path,
		logger:  logger.WithComponent(log.ComponentSettings),
		current: Defaults(),
	}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document from disk and makes it current. It never fails:
// a missing file yields the defaults silently, any other problem is logged
// as a warning and also yields the defaults.
func (s *Store) Load() Document {
	doc, ex, err := s.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("Settings file not found, using defaults", log.FieldSettingsPath, s.path)
		doc = Defaults()
	case err != nil:
		s.logger.Warn("Error loading settings, using defaults",
			log.FieldSettingsPath, s.path,
			log.FieldOperation, log.OpLoad,
			log.FieldError, err,
		)
		doc = Defaults()
	default:
		s.logger.Debug("Settings loaded", log.FieldSettingsPath, s.path)
	}

	s.mu.Lock()
	s.current = doc.Clone()
	s.extras = ex
	s.mu.Unlock()
	return doc
}

func (s *Store) read() (Document, extras, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Document{}, extras{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, extras{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, extras{}, err
	}
	ex, err := readExtras(data)
	if err != nil {
		return Document{}, extras{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, ex, nil
}

// Current returns a copy of the document in effect.
func (s *Store) Current() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Save validates doc, makes it current and writes it to disk. A write
// failure is returned; the in-memory document stays equal to doc.
func (s *Store) Save(doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = doc.Clone()
	ex := s.extras
	s.mu.Unlock()

	if err := s.write(doc, ex); err != nil {
		s.logger.Warn("Error saving settings",
			log.FieldSettingsPath, s.path,
			log.FieldOperation, log.OpSave,
			log.FieldError, err,
		)
		return fmt.Errorf("save settings: %w", err)
	}
	s.logger.Info("Settings saved", log.FieldSettingsPath, s.path)
	return nil
}

// encode renders doc in the on-disk shape with ex merged back in.
func encode(doc Document, ex extras) ([]byte, error) {
	rates := make(map[string]any, len(doc.Rates)+len(ex.rates))
	for k, raw := range ex.rates {
		rates[k] = raw
	}
	for v, rate := range doc.Rates {
		rates[RateKey(v)] = json.Number(rate.String())
	}
	out := make(map[string]any, len(ex.sections)+2)
	for k, raw := range ex.sections {
		out[k] = raw
	}
	out["rates"] = rates
	out["business"] = doc.Business
	return json.MarshalIndent(out, "", "  ")
}

func (s *Store) write(doc Document, ex extras) error {
	data, err := encode(doc, ex)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
