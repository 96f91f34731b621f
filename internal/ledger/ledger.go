// Package ledger records registrations in the festival spreadsheet.
//
// DiskLedger keeps the sheet as an xlsx file on Yandex Disk and updates it by
// whole-file replacement: the file is downloaded, decoded, extended by one row,
// re-encoded and uploaded with overwrite. Everything up to the upload happens in
// memory, so a failure before the last step leaves the remote file untouched.
// There is no version check on upload; two concurrent writers race and the last
// one wins.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"yolka-fest/internal/models"
	"yolka-fest/internal/workbook"
	"yolka-fest/internal/yadisk"
)

type Ledger interface {
	AppendRecord(ctx context.Context, rec models.Registration) error
	Sheet(ctx context.Context) (workbook.Sheet, error)
}

// Disk is the subset of the Yandex Disk API the ledger needs.
type Disk interface {
	DownloadLink(ctx context.Context, path string) (string, error)
	Download(ctx context.Context, href string) ([]byte, error)
	UploadLink(ctx context.Context, path string) (string, error)
	Upload(ctx context.Context, href string, data []byte) error
}

type Step string

const (
	StepDownloadLink Step = "download link"
	StepDownload     Step = "download"
	StepDecode       Step = "decode"
	StepEncode       Step = "encode"
	StepUploadLink   Step = "upload link"
	StepUpload       Step = "upload"
)

var ErrDecode = errors.New("failed to parse registration workbook")

type SyncError struct {
	Step Step
	Err  error
}

func (e *SyncError) Error() string { return e.Err.Error() }

func (e *SyncError) Unwrap() error { return e.Err }

type Config struct {
	Path     string
	Location *time.Location
	Now      func() time.Time
}

type DiskLedger struct {
	disk Disk
	cfg  Config
	log  *zap.Logger
}

func NewDiskLedger(disk Disk, cfg Config, log *zap.Logger) *DiskLedger {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DiskLedger{disk: disk, cfg: cfg, log: log.Named("ledger")}
}

// Sheet downloads and decodes the first sheet of the registration file.
func (l *DiskLedger) Sheet(ctx context.Context) (workbook.Sheet, error) {
	href, err := l.disk.DownloadLink(ctx, l.cfg.Path)
	if err != nil {
		return workbook.Sheet{}, &SyncError{Step: StepDownloadLink, Err: err}
	}
	data, err := l.disk.Download(ctx, href)
	if err != nil {
		return workbook.Sheet{}, &SyncError{Step: StepDownload, Err: err}
	}
	sheet, err := workbook.Decode(data)
	if err != nil {
		return workbook.Sheet{}, &SyncError{Step: StepDecode, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}
	l.log.Debug("sheet fetched",
		zap.String("path", l.cfg.Path),
		zap.String("sheet", sheet.Name),
		zap.Int("rows", len(sheet.Rows)))
	return sheet, nil
}

// AppendRecord adds rec as a new row. It performs one full read and, on
// success, exactly one full write; it never retries.
func (l *DiskLedger) AppendRecord(ctx context.Context, rec models.Registration) error {
	sheet, err := l.Sheet(ctx)
	if err != nil {
		l.log.Error("read registration sheet", zap.Error(err), statusField(err))
		return err
	}

	sheet.Append(RowFromRegistration(rec, l.cfg.Now().In(l.cfg.Location)), Columns)

	data, err := workbook.Encode(sheet)
	if err != nil {
		return &SyncError{Step: StepEncode, Err: err}
	}

	href, err := l.disk.UploadLink(ctx, l.cfg.Path)
	if err != nil {
		l.log.Error("resolve upload link", zap.Error(err), statusField(err))
		return &SyncError{Step: StepUploadLink, Err: err}
	}
	if err := l.disk.Upload(ctx, href, data); err != nil {
		l.log.Error("upload registration sheet", zap.Error(err), statusField(err))
		return &SyncError{Step: StepUpload, Err: err}
	}

	l.log.Info("registration saved",
		zap.String("path", l.cfg.Path),
		zap.String("nickname", rec.Nickname),
		zap.Int("rows", len(sheet.Rows)))
	return nil
}

func statusField(err error) zap.Field {
	var se *yadisk.StatusError
	if errors.As(err, &se) {
		return zap.Int("status", se.Status)
	}
	return zap.Skip()
}
