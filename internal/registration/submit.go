package registration

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yolka-fest/internal/models"
)

const (
	MessageSuccess      = "Регистрация прошла успешно!"
	MessageGenericError = "Произошла ошибка при отправке данных."
	MessageConnectivity = "Ошибка соединения с Яндекс Диском. Проверьте подключение к сети."
	MessageCanceled     = "Отправка прервана. Попробуйте еще раз."
)

// Ledger persists a registration. It is the authoritative half of a submission.
type Ledger interface {
	AppendRecord(ctx context.Context, rec models.Registration) error
}

// HypeGenerator is advisory and never fails.
type HypeGenerator interface {
	Generate(ctx context.Context, nickname string, nominations []string) string
}

type Submitter struct {
	ledger Ledger
	hype   HypeGenerator
	log    *zap.Logger
}

func NewSubmitter(ledger Ledger, hype HypeGenerator, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{ledger: ledger, hype: hype, log: log.Named("submit")}
}

// Submit starts the hype generation and the ledger write together. The write
// is awaited first and decides the outcome; the hype text is only consumed
// once the write succeeded.
func (s *Submitter) Submit(ctx context.Context, rec models.Registration) (models.SubmissionResult, error) {
	var (
		g    errgroup.Group
		text string
	)
	g.Go(func() error {
		text = s.hype.Generate(ctx, rec.Nickname, rec.NominationLabels())
		return nil
	})

	if err := s.ledger.AppendRecord(ctx, rec); err != nil {
		s.log.Error("submission failed", zap.String("nickname", rec.Nickname), zap.Error(err))
		return models.SubmissionResult{Success: false, Message: UserMessage(err)}, err
	}

	_ = g.Wait()
	return models.SubmissionResult{
		Success:   true,
		Message:   MessageSuccess,
		AIMessage: text,
	}, nil
}

// UserMessage turns a ledger error into the text shown to the participant.
func UserMessage(err error) string {
	if err == nil || err.Error() == "" {
		return MessageGenericError
	}
	if errors.Is(err, context.Canceled) {
		return MessageCanceled
	}
	if isConnectivity(err) {
		return MessageConnectivity
	}
	return "Ошибка: " + err.Error()
}

func isConnectivity(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "no such host", "Failed to fetch", "CORS"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
