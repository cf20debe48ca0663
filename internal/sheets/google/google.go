package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mileage/internal/core"
	"mileage/internal/log"
	ports "mileage/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ ports.ClaimWriter    = (*Client)(nil)
	_ ports.ClaimSubmitter = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service. An empty sheet name defaults to
// "Claims".
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Claims"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     strings.TrimSpace(sheetName),
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendClaims appends one row per entry below the last row of the claims
// sheet and returns the updated range.
func (c *Client) AppendClaims(ctx context.Context, s core.Submission) (string, error) {
	if err := s.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:J", c.sheetName)
	vr := &gsheet.ValueRange{Values: ports.Rows(s)}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Appended claims to sheet",
		log.FieldSubmissionRef, s.Reference,
		log.FieldEntryCount, len(s.Entries),
		"range", ref)
	return ref, nil
}

// Submit appends the submission straight to the sheet.
func (c *Client) Submit(ctx context.Context, s core.Submission) (string, error) {
	if _, err := c.AppendClaims(ctx, s); err != nil {
		return "", err
	}
	return s.Reference, nil
}
