package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"outlay/internal/core"
	ports "outlay/internal/sheets"
)

// Options configures the sheets client. Credentials come either inline
// (JSON strings) or from files; inline wins when both are set.
type Options struct {
	SpreadsheetID string
	SheetName     string // base name; a year prefix is added per expense

	ClientJSON string
	ClientFile string
	TokenJSON  string
	TokenFile  string
}

// Client exports expenses to a Google spreadsheet. Rows land on a sheet
// named "<year> <base>" according to each expense's business date.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var (
	_ ports.ExpenseExporter = (*Client)(nil)
	_ ports.ExpenseRemover  = (*Client)(nil)
)

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Expenses"
	}

	httpClient, err := newOAuthClient(ctx, opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     base,
	}, nil
}

func newOAuthClient(ctx context.Context, opts Options) (*http.Client, error) {
	cfg, err := loadOAuthConfig(opts)
	if err != nil {
		return nil, err
	}
	token, err := loadToken(opts)
	if err != nil {
		return nil, err
	}
	// TokenSource refreshes expired access tokens using the refresh token.
	return oauth2.NewClient(ctx, cfg.TokenSource(ctx, token)), nil
}

// Append writes one expense row and returns its range reference.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	sheet := yearSheetName(c.sheetBase, e.Date.UTC().Year())
	row := []any{
		e.ID,
		e.Date.UTC().Format("2006-01-02"),
		e.Title,
		e.Amount.DecimalString(),
		e.Category,
		e.OwnerID,
	}

	rng := fmt.Sprintf("%s!A:F", sheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// Remove clears the row carrying id. It scans the current and previous
// year sheets; ids not found anywhere are treated as already removed.
func (c *Client) Remove(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	year := time.Now().UTC().Year()
	for _, y := range []int{year, year - 1} {
		sheet := yearSheetName(c.sheetBase, y)
		found, err := c.removeFromSheet(ctx, sheet, id)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return nil
}

func (c *Client) removeFromSheet(ctx context.Context, sheet, id string) (bool, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		// A missing sheet for a year with no expenses is not an error.
		if strings.Contains(err.Error(), "Unable to parse range") {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", rng, err)
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) != id {
			continue
		}
		clearRange := fmt.Sprintf("%s!A%d:F%d", sheet, i+1, i+1)
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return false, fmt.Errorf("clear %s: %w", clearRange, err)
		}
		return true, nil
	}
	return false, nil
}

// yearSheetName returns "<year> <base>" unless base already carries a
// 4-digit year prefix.
func yearSheetName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func loadToken(opts Options) (*oauth2.Token, error) {
	var raw []byte
	switch {
	case strings.TrimSpace(opts.TokenJSON) != "":
		raw = []byte(opts.TokenJSON)
	case strings.TrimSpace(opts.TokenFile) != "":
		var err error
		raw, err = os.ReadFile(opts.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
	default:
		return nil, errors.New("missing OAuth token (set token JSON or file)")
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(raw, token); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}
	return token, nil
}

func loadOAuthConfig(opts Options) (*oauth2.Config, error) {
	var raw []byte
	switch {
	case strings.TrimSpace(opts.ClientJSON) != "":
		raw = []byte(opts.ClientJSON)
	case strings.TrimSpace(opts.ClientFile) != "":
		var err error
		raw, err = os.ReadFile(opts.ClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
	default:
		return nil, errors.New("missing OAuth client credentials (set client JSON or file)")
	}

	cfg, err := goauth.ConfigFromJSON(raw, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}
	return cfg, nil
}
