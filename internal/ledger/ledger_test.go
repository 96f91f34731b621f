package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yolka-fest/internal/models"
	"yolka-fest/internal/workbook"
	"yolka-fest/internal/yadisk"
)

type fakeDisk struct {
	file []byte

	downloadLinkErr error
	downloadErr     error
	uploadLinkErr   error
	uploadErr       error

	downloadLinkCalls int
	uploadLinkCalls   int
	uploadCalls       int
	uploaded          []byte
}

func (d *fakeDisk) DownloadLink(ctx context.Context, path string) (string, error) {
	d.downloadLinkCalls++
	if d.downloadLinkErr != nil {
		return "", d.downloadLinkErr
	}
	return "https://downloader.example/file", nil
}

func (d *fakeDisk) Download(ctx context.Context, href string) ([]byte, error) {
	if d.downloadErr != nil {
		return nil, d.downloadErr
	}
	return d.file, nil
}

func (d *fakeDisk) UploadLink(ctx context.Context, path string) (string, error) {
	d.uploadLinkCalls++
	if d.uploadLinkErr != nil {
		return "", d.uploadLinkErr
	}
	return "https://uploader.example/file", nil
}

func (d *fakeDisk) Upload(ctx context.Context, href string, data []byte) error {
	d.uploadCalls++
	if d.uploadErr != nil {
		return d.uploadErr
	}
	d.uploaded = data
	return nil
}

var fixedNow = time.Date(2026, 12, 20, 18, 30, 5, 0, time.UTC)

func testRecord() models.Registration {
	return models.Registration{
		FullName:    "Иванов Иван",
		City:        "Москва",
		Nickname:    "Zero",
		BirthDate:   "2005-01-01",
		Teacher:     "Petrov",
		Phone:       "+70000000000",
		VKLink:      "vk.com/id1",
		Nominations: []models.Nomination{models.NominationHipHop, models.NominationBGirls},
	}
}

func existingFile(t *testing.T, rows int) ([]byte, workbook.Sheet) {
	t.Helper()
	s := workbook.Sheet{Name: "Регистрация"}
	for i := 0; i < rows; i++ {
		s.Append(workbook.Row{
			ColFullName:   "Участник " + string(rune('A'+i)),
			ColNickname:   "nick" + string(rune('a'+i)),
			"Комментарий": "оплачено",
		}, []string{ColFullName, ColNickname, "Комментарий"})
	}
	data, err := workbook.Encode(s)
	require.NoError(t, err)
	decoded, err := workbook.Decode(data)
	require.NoError(t, err)
	return data, decoded
}

func newTestLedger(d Disk) *DiskLedger {
	return NewDiskLedger(d, Config{
		Path:     "/Приложения/Регистрация.xlsx",
		Location: time.FixedZone("MSK", 3*60*60),
		Now:      func() time.Time { return fixedNow },
	}, nil)
}

func TestAppendRecordAddsOneRow(t *testing.T) {
	data, before := existingFile(t, 3)
	disk := &fakeDisk{file: data}

	require.NoError(t, newTestLedger(disk).AppendRecord(context.Background(), testRecord()))
	require.Equal(t, 1, disk.uploadCalls)

	after, err := workbook.Decode(disk.uploaded)
	require.NoError(t, err)
	assert.Equal(t, "Регистрация", after.Name)
	require.Len(t, after.Rows, len(before.Rows)+1)
	if diff := cmp.Diff(before.Rows, after.Rows[:len(before.Rows)]); diff != "" {
		t.Fatalf("existing rows changed (-before +after):\n%s", diff)
	}

	want := workbook.Row{
		ColFullName:     "Иванов Иван",
		ColCity:         "Москва",
		ColNickname:     "Zero",
		ColBirthDate:    "2005-01-01",
		ColTeacher:      "Petrov",
		ColPhone:        "+70000000000",
		ColVKLink:       "vk.com/id1",
		ColNominations:  "HIP-HOP, BGIRLS",
		ColRegisteredAt: "20.12.2026, 21:30:05",
	}
	assert.Equal(t, want, after.Rows[len(after.Rows)-1])
	assert.Equal(t, []string{
		ColFullName, ColNickname, "Комментарий",
		ColCity, ColBirthDate, ColTeacher, ColPhone, ColVKLink, ColNominations, ColRegisteredAt,
	}, after.Columns)
}

func TestAppendRecordIntoEmptySheet(t *testing.T) {
	data, err := workbook.Encode(workbook.Sheet{Name: "Лист1"})
	require.NoError(t, err)
	disk := &fakeDisk{file: data}

	require.NoError(t, newTestLedger(disk).AppendRecord(context.Background(), testRecord()))

	after, err := workbook.Decode(disk.uploaded)
	require.NoError(t, err)
	assert.Equal(t, Columns, after.Columns)
	require.Len(t, after.Rows, 1)
}

func TestAppendRecordNotFoundSkipsUpload(t *testing.T) {
	disk := &fakeDisk{downloadLinkErr: &yadisk.StatusError{Err: yadisk.ErrNotFound, Status: 404}}

	err := newTestLedger(disk).AppendRecord(context.Background(), testRecord())
	require.ErrorIs(t, err, yadisk.ErrNotFound)

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, StepDownloadLink, syncErr.Step)
	assert.Zero(t, disk.uploadLinkCalls)
	assert.Zero(t, disk.uploadCalls)
}

func TestAppendRecordDecodeFailureLeavesRemoteUntouched(t *testing.T) {
	disk := &fakeDisk{file: []byte("<html>not a workbook</html>")}

	err := newTestLedger(disk).AppendRecord(context.Background(), testRecord())
	require.ErrorIs(t, err, ErrDecode)
	assert.Zero(t, disk.uploadLinkCalls)
	assert.Zero(t, disk.uploadCalls)
}

func TestAppendRecordDownloadFailure(t *testing.T) {
	disk := &fakeDisk{downloadErr: &yadisk.StatusError{Err: yadisk.ErrDownload, Status: 500}}

	err := newTestLedger(disk).AppendRecord(context.Background(), testRecord())
	require.ErrorIs(t, err, yadisk.ErrDownload)
	assert.Zero(t, disk.uploadCalls)
}

func TestAppendRecordUploadLinkFailure(t *testing.T) {
	data, _ := existingFile(t, 1)
	disk := &fakeDisk{file: data, uploadLinkErr: &yadisk.StatusError{Err: yadisk.ErrUploadLink, Status: 403}}

	err := newTestLedger(disk).AppendRecord(context.Background(), testRecord())
	require.ErrorIs(t, err, yadisk.ErrUploadLink)
	assert.Zero(t, disk.uploadCalls)
}

func TestAppendRecordUploadFailureIsNotRetried(t *testing.T) {
	data, _ := existingFile(t, 2)
	disk := &fakeDisk{file: data, uploadErr: &yadisk.StatusError{Err: yadisk.ErrUpload, Status: 507}}

	err := newTestLedger(disk).AppendRecord(context.Background(), testRecord())
	require.ErrorIs(t, err, yadisk.ErrUpload)

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, StepUpload, syncErr.Step)
	assert.Equal(t, 1, disk.downloadLinkCalls)
	assert.Equal(t, 1, disk.uploadLinkCalls)
	assert.Equal(t, 1, disk.uploadCalls)
}

func TestValuesFollowColumnOrder(t *testing.T) {
	vals := Values(testRecord(), fixedNow, Columns)
	require.Len(t, vals, len(Columns))
	assert.Equal(t, "Иванов Иван", vals[0])
	assert.Equal(t, "HIP-HOP, BGIRLS", vals[7])
	assert.Equal(t, "20.12.2026, 18:30:05", vals[8])
}

func TestValuesFollowForeignHeader(t *testing.T) {
	header := []string{ColNickname, "Комментарий", ColFullName, ColNickname, ColCity}
	vals := Values(testRecord(), fixedNow, header)
	assert.Equal(t, []interface{}{"Zero", "", "Иванов Иван", "", "Москва"}, vals)
}
