package registration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yolka-fest/internal/hype"
	"yolka-fest/internal/ledger"
	"yolka-fest/internal/models"
	"yolka-fest/internal/yadisk"
)

type fakeLedger struct {
	mu      sync.Mutex
	err     error
	records []models.Registration
	gate    chan struct{}
	entered chan struct{}
}

func (l *fakeLedger) AppendRecord(ctx context.Context, rec models.Registration) error {
	if l.entered != nil {
		l.entered <- struct{}{}
	}
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return l.err
}

func (l *fakeLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type fakeHype struct {
	text  string
	delay time.Duration
}

func (h fakeHype) Generate(ctx context.Context, nickname string, nominations []string) string {
	time.Sleep(h.delay)
	return h.text
}

func scenarioRecord() models.Registration {
	return models.Registration{
		FullName:    "Иванов Иван",
		City:        "Москва",
		Nickname:    "Zero",
		BirthDate:   "2005-01-01",
		Teacher:     "Petrov",
		Phone:       "+70000000000",
		VKLink:      "vk.com/id1",
		Nominations: []models.Nomination{models.NominationHipHop},
	}
}

func blankField(rec models.Registration, field string) models.Registration {
	if field == models.FieldNomination {
		rec.Nominations = nil
		return rec
	}
	setFieldValue(&rec, field, "   ")
	return rec
}

func TestValidateCompleteRecord(t *testing.T) {
	assert.Empty(t, Validate(scenarioRecord()))
}

func TestValidateReportsExactlyMissingFields(t *testing.T) {
	// every subset of fields, blanked
	for mask := 1; mask < 1<<len(Fields); mask++ {
		rec := scenarioRecord()
		var want []string
		for i, f := range Fields {
			if mask&(1<<i) != 0 {
				rec = blankField(rec, f)
				want = append(want, f)
			}
		}
		errs := Validate(rec)
		var got []string
		for k := range errs {
			got = append(got, k)
		}
		sort.Strings(want)
		sort.Strings(got)
		require.Equal(t, want, got, "mask %b", mask)
	}
}

func TestValidateMessages(t *testing.T) {
	errs := Validate(models.Registration{})
	assert.Equal(t, "Введите ФИО", errs[models.FieldFullName])
	assert.Equal(t, "Выберите дату рождения", errs[models.FieldBirthDate])
	assert.Equal(t, "Выберите хотя бы одну номинацию", errs[models.FieldNomination])
	assert.Len(t, errs, 8)
}

func TestSubmissionScenario(t *testing.T) {
	l := &fakeLedger{}
	gen := hype.New(context.Background(), "", "", nil, zap.NewNop())
	form := NewForm(NewSubmitter(l, gen, zap.NewNop()))
	require.NoError(t, form.Fill(scenarioRecord()))

	res, err := form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, MessageSuccess, res.Message)
	assert.Contains(t, res.AIMessage, "Zero")
	assert.Contains(t, res.AIMessage, "HIP-HOP")

	assert.Equal(t, StateSucceeded, form.State())
	assert.Equal(t, models.Registration{}, form.Record())
	require.Equal(t, 1, l.calls())
	assert.Equal(t, scenarioRecord(), l.records[0])

	form.Dismiss()
	assert.Equal(t, StateEditing, form.State())
	assert.Nil(t, form.Result())
}

func TestSubmitInvalidNeverCallsLedger(t *testing.T) {
	l := &fakeLedger{}
	form := NewForm(NewSubmitter(l, fakeHype{text: "hi"}, nil))
	require.NoError(t, form.Fill(blankField(scenarioRecord(), models.FieldPhone)))

	_, err := form.Submit(context.Background())
	require.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, StateEditing, form.State())
	assert.Equal(t, models.FieldErrors{models.FieldPhone: "Введите номер телефона"}, form.Errors())
	assert.Zero(t, l.calls())

	require.NoError(t, form.SetField(models.FieldPhone, "+7"))
	assert.Empty(t, form.Errors())
}

func TestSetFieldClearsOnlyThatError(t *testing.T) {
	form := NewForm(NewSubmitter(&fakeLedger{}, fakeHype{}, nil))
	_, err := form.Submit(context.Background())
	require.ErrorIs(t, err, ErrInvalid)
	require.Len(t, form.Errors(), 8)

	require.NoError(t, form.SetField(models.FieldCity, ""))
	errs := form.Errors()
	assert.Len(t, errs, 7)
	assert.NotContains(t, errs, models.FieldCity)

	require.NoError(t, form.ToggleNomination(models.NominationBGirls))
	assert.NotContains(t, form.Errors(), models.FieldNomination)

	assert.ErrorIs(t, form.SetField("email", "x"), ErrUnknownField)
}

func TestToggleNomination(t *testing.T) {
	form := NewForm(NewSubmitter(&fakeLedger{}, fakeHype{}, nil))
	require.NoError(t, form.ToggleNomination(models.NominationBGirls))
	require.NoError(t, form.ToggleNomination(models.NominationHipHop))
	assert.Equal(t, []models.Nomination{models.NominationBGirls, models.NominationHipHop}, form.Record().Nominations)

	require.NoError(t, form.ToggleNomination(models.NominationBGirls))
	assert.Equal(t, []models.Nomination{models.NominationHipHop}, form.Record().Nominations)
}

func TestSyncFailureKeepsRecord(t *testing.T) {
	syncErr := &ledger.SyncError{Step: ledger.StepDownloadLink, Err: &yadisk.StatusError{Err: yadisk.ErrNotFound, Status: 404}}
	l := &fakeLedger{err: syncErr}
	form := NewForm(NewSubmitter(l, fakeHype{text: "should not be shown"}, nil))
	require.NoError(t, form.Fill(scenarioRecord()))

	res, err := form.Submit(context.Background())
	require.ErrorIs(t, err, yadisk.ErrNotFound)
	assert.False(t, res.Success)
	assert.Empty(t, res.AIMessage)
	assert.Equal(t, "Ошибка: Файл регистрации не найден на диске", res.Message)
	assert.Equal(t, StateFailed, form.State())
	assert.Equal(t, scenarioRecord(), form.Record())

	// retry straight from failed
	l.err = nil
	res, err = form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, l.calls())
}

func TestSubmitWaitsForHypeAfterSync(t *testing.T) {
	l := &fakeLedger{}
	s := NewSubmitter(l, fakeHype{text: "разорви!", delay: 30 * time.Millisecond}, nil)

	res, err := s.Submit(context.Background(), scenarioRecord())
	require.NoError(t, err)
	assert.Equal(t, "разорви!", res.AIMessage)
}

// rendezvousHype and rendezvousLedger each wait for the other to have begun,
// so they only both see the other when the two calls overlap.
type rendezvousHype struct {
	started       chan struct{}
	ledgerEntered <-chan struct{}
	sawLedger     bool
}

func (h *rendezvousHype) Generate(ctx context.Context, nickname string, nominations []string) string {
	close(h.started)
	select {
	case <-h.ledgerEntered:
		h.sawLedger = true
	case <-time.After(2 * time.Second):
	}
	return "йо"
}

type rendezvousLedger struct {
	entered     chan struct{}
	hypeStarted <-chan struct{}
	sawHype     bool
}

func (l *rendezvousLedger) AppendRecord(ctx context.Context, rec models.Registration) error {
	close(l.entered)
	select {
	case <-l.hypeStarted:
		l.sawHype = true
	case <-time.After(2 * time.Second):
	}
	return nil
}

func TestSubmitRunsHypeAlongsideSync(t *testing.T) {
	hypeStarted := make(chan struct{})
	ledgerEntered := make(chan struct{})
	h := &rendezvousHype{started: hypeStarted, ledgerEntered: ledgerEntered}
	l := &rendezvousLedger{entered: ledgerEntered, hypeStarted: hypeStarted}

	res, err := NewSubmitter(l, h, nil).Submit(context.Background(), scenarioRecord())
	require.NoError(t, err)
	assert.True(t, l.sawHype, "hype call had not started during the ledger write")
	assert.True(t, h.sawLedger, "ledger write had not started during the hype call")
	assert.Equal(t, "йо", res.AIMessage)
}

func TestNoSecondSubmissionWhileSubmitting(t *testing.T) {
	l := &fakeLedger{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	form := NewForm(NewSubmitter(l, fakeHype{text: "ok"}, nil))
	require.NoError(t, form.Fill(scenarioRecord()))

	done := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background())
		done <- err
	}()
	<-l.entered

	assert.Equal(t, StateSubmitting, form.State())
	_, err := form.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitting)
	assert.ErrorIs(t, form.SetField(models.FieldCity, "Казань"), ErrSubmitting)
	assert.ErrorIs(t, form.ToggleNomination(models.NominationBGirls), ErrSubmitting)
	assert.ErrorIs(t, form.Reset(), ErrSubmitting)

	close(l.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, l.calls())
	assert.Equal(t, StateSucceeded, form.State())

	assert.ErrorIs(t, form.SetField(models.FieldCity, "Казань"), ErrNotEditing)
	_, err = form.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestUserMessage(t *testing.T) {
	transport := &url.Error{Op: "Get", URL: "https://cloud-api.yandex.net", Err: errors.New("dial tcp: i/o timeout")}
	assert.Equal(t, MessageConnectivity, UserMessage(fmt.Errorf("%w: %w", yadisk.ErrDownloadLink, transport)))
	assert.Equal(t, MessageConnectivity, UserMessage(errors.New("TypeError: Failed to fetch")))
	assert.Equal(t, "Ошибка: failed to upload file", UserMessage(yadisk.ErrUpload))
	assert.Equal(t, MessageGenericError, UserMessage(nil))

	canceled := &url.Error{Op: "Get", URL: "https://cloud-api.yandex.net", Err: context.Canceled}
	assert.Equal(t, MessageCanceled, UserMessage(fmt.Errorf("%w: %w", yadisk.ErrDownloadLink, canceled)))
}
