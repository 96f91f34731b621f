package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"yolka-fest/internal/ledger"
	"yolka-fest/internal/models"
	"yolka-fest/internal/workbook"
)

func (c *Client) readAll(ctx context.Context) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, c.rangeA1("A:Z")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Append(c.spreadsheetID, c.rangeA1("A:Z"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *Client) updateRow(ctx context.Context, a1 string, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, c.rangeA1(a1), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (c *Client) readHeader(ctx context.Context) ([]string, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, c.rangeA1("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	header := make([]string, len(resp.Values[0]))
	for i := range resp.Values[0] {
		header[i] = get(resp.Values[0], i)
	}
	return header, nil
}

// ensureColumns returns row 1 of the tab after appending any ledger column
// it lacks. Existing labels keep their positions.
func (c *Client) ensureColumns(ctx context.Context) ([]string, error) {
	header, err := c.readHeader(ctx)
	if err != nil {
		return nil, &ledger.SyncError{Step: ledger.StepDownload, Err: err}
	}
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	n := len(header)
	for _, col := range ledger.Columns {
		if !have[col] {
			header = append(header, col)
		}
	}
	if len(header) == n {
		return header, nil
	}

	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	c.log.Info("writing header row", zap.String("sheet", c.sheet), zap.Strings("added", header[n:]))
	if err := c.updateRow(ctx, "A1", row); err != nil {
		return nil, &ledger.SyncError{Step: ledger.StepUpload, Err: err}
	}
	return header, nil
}

// EnsureHeaders makes sure row 1 carries every ledger column.
func (c *Client) EnsureHeaders(ctx context.Context) error {
	_, err := c.ensureColumns(ctx)
	return err
}

// AppendRecord appends one row laid out under the tab's own header.
func (c *Client) AppendRecord(ctx context.Context, rec models.Registration) error {
	header, err := c.ensureColumns(ctx)
	if err != nil {
		c.log.Error("read sheet header", zap.Error(err))
		return err
	}
	if err := c.appendRow(ctx, ledger.Values(rec, c.now().In(c.loc), header)); err != nil {
		c.log.Error("append registration", zap.Error(err))
		return &ledger.SyncError{Step: ledger.StepUpload, Err: err}
	}
	c.log.Info("registration saved", zap.String("sheet", c.sheet), zap.String("nickname", rec.Nickname))
	return nil
}

// Sheet reads the tab into the generic row form.
func (c *Client) Sheet(ctx context.Context) (workbook.Sheet, error) {
	values, err := c.readAll(ctx)
	if err != nil {
		return workbook.Sheet{}, &ledger.SyncError{Step: ledger.StepDownload, Err: err}
	}
	raw := make([][]string, len(values))
	for i, row := range values {
		raw[i] = make([]string, len(row))
		for j := range row {
			raw[i][j] = get(row, j)
		}
	}
	return workbook.FromRows(c.sheet, raw), nil
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
