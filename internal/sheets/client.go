package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// Client keeps registrations in one tab of a Google Sheets spreadsheet.
type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
	sheet         string
	loc           *time.Location
	now           func() time.Time
	log           *zap.Logger
}

func New(ctx context.Context, serviceAccountJSONPath, spreadsheetID, sheet string, loc *time.Location, log *zap.Logger) (*Client, error) {
	if _, err := os.Stat(serviceAccountJSONPath); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	return newClient(ctx, spreadsheetID, sheet, loc, log,
		option.WithCredentialsFile(serviceAccountJSONPath),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
}

func newClient(ctx context.Context, spreadsheetID, sheet string, loc *time.Location, log *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		loc:           loc,
		now:           time.Now,
		log:           log.Named("sheets"),
	}, nil
}

// rangeA1 quotes the tab name so Cyrillic and spaces are accepted.
func (c *Client) rangeA1(cells string) string {
	return "'" + strings.ReplaceAll(c.sheet, "'", "''") + "'!" + cells
}
