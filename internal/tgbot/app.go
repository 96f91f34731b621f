package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"yolka-fest/internal/config"
	"yolka-fest/internal/models"
	"yolka-fest/internal/registration"
)

const (
	msgAlreadySubmitting = "Регистрация уже отправляется…"
	msgPressStart        = "Нажми /start, чтобы зарегистрироваться."
	msgPickNominations   = "Выбери номинации кнопками ниже и нажми «Готово»."
	btnAgain             = "Зарегистрировать еще одного участника"
	btnRetry             = "Повторить"
)

// botAPI is the part of *tgbotapi.BotAPI the dialogue uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type question struct {
	field  string
	prompt string
}

// questions follow the page order; nominations come last via the keyboard.
var questions = []question{
	{models.FieldNickname, "Введи никнейм (так тебя объявят на баттле):"},
	{models.FieldBirthDate, "Дата рождения (ДД.ММ.ГГГГ):"},
	{models.FieldFullName, "ФИО:"},
	{models.FieldCity, "Город:"},
	{models.FieldTeacher, "Педагог / клуб:"},
	{models.FieldPhone, "Телефон:"},
	{models.FieldVKLink, "Ссылка ВК:"},
}

type App struct {
	bot       botAPI
	submitter *registration.Submitter
	admins    map[int64]bool
	exportURL string
	log       *zap.Logger

	mu    sync.Mutex
	chats map[int64]*chat

	// submissions in flight
	wg sync.WaitGroup
}

type chat struct {
	form *registration.Form
	step int
}

func New(cfg config.Config, submitter *registration.Submitter, exportURL string, log *zap.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return newApp(b, submitter, cfg.AdminTGIDs, exportURL, log), nil
}

func newApp(bot botAPI, submitter *registration.Submitter, admins map[int64]bool, exportURL string, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		bot:       bot,
		submitter: submitter,
		admins:    admins,
		exportURL: exportURL,
		log:       log.Named("tgbot"),
		chats:     map[int64]*chat{},
	}
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				if err := a.handleMessage(ctx, upd.Message); err != nil {
					a.log.Warn("handle message", zap.Error(err))
				}
			} else if upd.CallbackQuery != nil {
				if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
					a.log.Warn("handle callback", zap.Error(err))
				}
			}
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	_, err := a.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (a *App) isAdmin(tgID int64) bool {
	return a.admins[tgID]
}

func (a *App) chat(chatID int64) *chat {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chats[chatID]
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.Chat == nil {
		return nil
	}
	chatID := m.Chat.ID
	txt := strings.TrimSpace(m.Text)

	switch {
	case strings.HasPrefix(txt, "/start"):
		return a.start(chatID)
	case strings.HasPrefix(txt, "/cancel"):
		return a.cancel(chatID)
	case strings.HasPrefix(txt, "/export"):
		if m.From == nil || !a.isAdmin(m.From.ID) {
			return a.SendText(chatID, "Доступ запрещён.")
		}
		return a.SendText(chatID, "Выгрузка регистраций (CSV):\n"+a.exportURL)
	}

	c := a.chat(chatID)
	if c == nil {
		return a.SendText(chatID, msgPressStart)
	}
	switch c.form.State() {
	case registration.StateSubmitting:
		return a.SendText(chatID, msgAlreadySubmitting)
	case registration.StateSucceeded:
		return a.SendText(chatID, "Заявка уже принята. "+msgPressStart)
	}
	if c.step >= len(questions) {
		return a.SendText(chatID, msgPickNominations)
	}
	return a.answer(chatID, c, txt)
}

func (a *App) start(chatID int64) error {
	c := a.chat(chatID)
	if c != nil && c.form.State() == registration.StateSubmitting {
		return a.SendText(chatID, msgAlreadySubmitting)
	}
	c = &chat{form: registration.NewForm(a.submitter)}
	a.mu.Lock()
	a.chats[chatID] = c
	a.mu.Unlock()

	if err := a.SendText(chatID, "Йо! Это регистрация на ЙОЛКА FEST. Отвечай на вопросы, /cancel отменит регистрацию."); err != nil {
		return err
	}
	return a.SendText(chatID, questions[0].prompt)
}

func (a *App) cancel(chatID int64) error {
	c := a.chat(chatID)
	if c == nil {
		return a.SendText(chatID, msgPressStart)
	}
	if err := c.form.Reset(); err != nil {
		return a.SendText(chatID, msgAlreadySubmitting)
	}
	a.mu.Lock()
	delete(a.chats, chatID)
	a.mu.Unlock()
	return a.SendText(chatID, "Регистрация отменена. "+msgPressStart)
}

func (a *App) answer(chatID int64, c *chat, txt string) error {
	q := questions[c.step]
	if q.field == models.FieldBirthDate && txt != "" {
		d, ok := parseBirthDate(txt)
		if !ok {
			return a.SendText(chatID, "Не понял дату. Напиши в формате ДД.ММ.ГГГГ, например 05.03.2012.")
		}
		txt = d
	}
	if err := c.form.SetField(q.field, txt); err != nil {
		if errors.Is(err, registration.ErrSubmitting) {
			return a.SendText(chatID, msgAlreadySubmitting)
		}
		return err
	}
	if msg := registration.ValidateField(q.field, c.form.Record()); msg != "" {
		return a.SendText(chatID, msg+"\n"+q.prompt)
	}

	c.step++
	if c.step < len(questions) {
		return a.SendText(chatID, questions[c.step].prompt)
	}
	return a.showNominations(chatID, c)
}

// parseBirthDate accepts ДД.ММ.ГГГГ or ГГГГ-ММ-ДД and returns ГГГГ-ММ-ДД.
func parseBirthDate(s string) (string, bool) {
	for _, layout := range []string{"2.1.2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ---------- Nominations ----------

func nominationKeyboard(selected models.Registration) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, n := range models.Nominations {
		label := string(n)
		if selected.HasNomination(n) {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "n:t:"+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Готово", "n:done"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (a *App) showNominations(chatID int64, c *chat) error {
	msg := tgbotapi.NewMessage(chatID, "Номинации (можно несколько):")
	msg.ReplyMarkup = nominationKeyboard(c.form.Record())
	_, err := a.bot.Send(msg)
	return err
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q.Message == nil || q.Message.Chat == nil {
		return nil
	}
	chatID := q.Message.Chat.ID
	data := q.Data

	// ack
	_, _ = a.bot.Request(tgbotapi.NewCallback(q.ID, ""))

	c := a.chat(chatID)
	if c == nil {
		return a.SendText(chatID, msgPressStart)
	}

	switch {
	case strings.HasPrefix(data, "n:t:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(data, "n:t:"))
		if err != nil || idx < 0 || idx >= len(models.Nominations) {
			return fmt.Errorf("bad nomination callback %q", data)
		}
		if err := c.form.ToggleNomination(models.Nominations[idx]); err != nil {
			if errors.Is(err, registration.ErrSubmitting) {
				return a.SendText(chatID, msgAlreadySubmitting)
			}
			return a.SendText(chatID, "Заявка уже принята. "+msgPressStart)
		}
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, q.Message.MessageID, nominationKeyboard(c.form.Record()))
		_, err = a.bot.Send(edit)
		return err
	case data == "n:done", data == "f:retry":
		return a.submit(ctx, chatID, c)
	case data == "f:again":
		c.form.Dismiss()
		if err := c.form.Reset(); err != nil {
			return a.SendText(chatID, msgAlreadySubmitting)
		}
		c.step = 0
		return a.SendText(chatID, questions[0].prompt)
	}
	return nil
}

// submit hands the form to the pipeline in the background; the form itself
// rejects a second submission while one is running.
func (a *App) submit(ctx context.Context, chatID int64, c *chat) error {
	if c.form.State() == registration.StateSubmitting {
		return a.SendText(chatID, msgAlreadySubmitting)
	}
	if c.step < len(questions) {
		return a.SendText(chatID, questions[c.step].prompt)
	}
	if err := a.SendText(chatID, "Регистрация..."); err != nil {
		return err
	}

	// Shutdown does not abort a started sync; Run waits for it.
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res, err := c.form.Submit(ctx)
		if sendErr := a.report(chatID, c, res, err); sendErr != nil {
			a.log.Warn("send submission result", zap.Int64("chat_id", chatID), zap.Error(sendErr))
		}
	}()
	return nil
}

func (a *App) report(chatID int64, c *chat, res models.SubmissionResult, err error) error {
	switch {
	case errors.Is(err, registration.ErrSubmitting):
		return a.SendText(chatID, msgAlreadySubmitting)
	case errors.Is(err, registration.ErrInvalid):
		var lines []string
		errs := c.form.Errors()
		for _, f := range registration.Fields {
			if msg, ok := errs[f]; ok {
				lines = append(lines, msg)
			}
		}
		return a.SendText(chatID, strings.Join(lines, "\n"))
	case errors.Is(err, registration.ErrNotEditing):
		return a.SendText(chatID, "Заявка уже принята. "+msgPressStart)
	case err != nil:
		a.log.Warn("registration not saved", zap.Int64("chat_id", chatID), zap.Error(err))
		msg := tgbotapi.NewMessage(chatID, res.Message)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnRetry, "f:retry"),
		))
		_, sendErr := a.bot.Send(msg)
		return sendErr
	}

	text := "✅ " + res.Message
	if res.AIMessage != "" {
		text += "\n\n" + res.AIMessage
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnAgain, "f:again"),
	))
	_, sendErr := a.bot.Send(msg)
	return sendErr
}
