// Package google stores the ledger snapshot in a Google spreadsheet, one tab
// per entity kind, through the Sheets API. It authenticates with a service
// account, or with a user token saved by cmd/oauth-init.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"presupuesto/internal/core"
	applog "presupuesto/internal/log"
	ports "presupuesto/internal/sheets"
)

var _ ports.Store = (*Client)(nil)

// Config selects the spreadsheet and the credentials. A user token file wins
// over the service account. Inline JSON wins over the file; with neither,
// GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *applog.Logger

	mu       sync.Mutex
	tabsDone bool
}

func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Default(applog.ComponentSheets)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger) (*gsheet.Service, error) {
	if logger == nil {
		logger = applog.Default(applog.ComponentSheets)
	}
	if strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		ts, err := userTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "Using saved OAuth user token", "path", cfg.OAuthTokenFile)
		return gsheet.NewService(ctx, goption.WithTokenSource(ts))
	}
	credsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	credsFile := strings.TrimSpace(cfg.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentials []byte
	switch {
	case credsJSON != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		credentials = []byte(credsJSON)
	case credsFile != "":
		data, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Read service account credentials", "path", credsFile, "size", len(data))
		credentials = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Load reads every tab in one batch request.
func (c *Client) Load(ctx context.Context) (core.Snapshot, error) {
	if err := c.ensureTabs(ctx); err != nil {
		return core.Snapshot{}, err
	}

	ranges := make([]string, len(tabOrder))
	for i, tab := range tabOrder {
		ranges[i] = tabRange(tab)
	}
	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return core.Snapshot{}, transportError("load", err)
	}

	tabs := make(map[string][][]any, len(tabOrder))
	for i, vr := range resp.ValueRanges {
		if i >= len(tabOrder) || vr == nil {
			continue
		}
		tabs[tabOrder[i]] = vr.Values
	}

	snap, skipped := valuesToSnapshot(tabs)
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped unreadable spreadsheet rows", "skipped", skipped)
	}
	return snap, nil
}

// Save clears every tab and rewrites it. Values are written RAW so amounts
// keep their exact decimal text.
func (c *Client) Save(ctx context.Context, s core.Snapshot) error {
	if err := c.ensureTabs(ctx); err != nil {
		return err
	}

	ranges := make([]string, len(tabOrder))
	for i, tab := range tabOrder {
		ranges[i] = tabRange(tab)
	}
	_, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: ranges}).
		Context(ctx).Do()
	if err != nil {
		return transportError("save", err)
	}

	values := snapshotToValues(s)
	data := make([]*gsheet.ValueRange, 0, len(tabOrder))
	for _, tab := range tabOrder {
		data = append(data, &gsheet.ValueRange{Range: tab + "!A1", Values: values[tab]})
	}
	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return transportError("save", err)
	}

	c.logger.InfoContext(ctx, "Snapshot written to spreadsheet",
		"transactions", len(s.Transactions), "debts", len(s.Debts), "recurring", len(s.Recurring))
	return nil
}

// ensureTabs creates missing tabs once per client.
func (c *Client) ensureTabs(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tabsDone {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return transportError("inspect", err)
	}
	existing := map[string]bool{}
	for _, sh := range ss.Sheets {
		if sh != nil && sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var reqs []*gsheet.Request
	for _, tab := range tabOrder {
		if !existing[tab] {
			reqs = append(reqs, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			}})
		}
	}
	if len(reqs) > 0 {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
			Context(ctx).Do()
		if err != nil {
			return transportError("create tabs", err)
		}
		c.logger.InfoContext(ctx, "Created spreadsheet tabs", "count", len(reqs))
	}
	c.tabsDone = true
	return nil
}

func tabRange(tab string) string {
	last := 'A' + rune(len(tabHeaders[tab])-1)
	return fmt.Sprintf("%s!A:%c", tab, last)
}

// transportError keeps the API status code when there is one.
func transportError(op string, err error) error {
	te := &core.TransportError{Op: "sheets " + op, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		te.StatusCode = gerr.Code
	}
	return te
}
