package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"yolka-fest/internal/config"
	"yolka-fest/internal/ledger"
	"yolka-fest/internal/models"
	"yolka-fest/internal/registration"
	"yolka-fest/internal/util"
)

const maxBodyBytes = 64 << 10

type Deps struct {
	Submitter *registration.Submitter
	Ledger    ledger.Ledger
	Limiter   Limiter
	Log       *zap.Logger
}

func New(cfg config.Config, deps Deps) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewHandler(cfg, deps),
	}
}

func NewHandler(cfg config.Config, deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	h := &handlers{cfg: cfg, submitter: deps.Submitter, ledger: deps.Ledger, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.page)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.HandleFunc("GET /api/nominations", h.nominations)
	mux.Handle("POST /api/register", rateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, cfg.TrustedProxies)(http.HandlerFunc(h.register)))
	mux.HandleFunc("GET /export/registrations.csv", h.export)

	return withRequestLog(log, mux)
}

type handlers struct {
	cfg       config.Config
	submitter *registration.Submitter
	ledger    ledger.Ledger
	log       *zap.Logger
}

func (h *handlers) nominations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Nominations)
}

type registerResponse struct {
	models.SubmissionResult
	Errors models.FieldErrors `json:"errors,omitempty"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var rec models.Registration
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, registerResponse{
			SubmissionResult: models.SubmissionResult{Message: "Некорректные данные формы"},
		})
		return
	}
	// Nominations are a set: repeats collapse onto the first occurrence.
	seen := make(map[models.Nomination]bool, len(rec.Nominations))
	noms := make([]models.Nomination, 0, len(rec.Nominations))
	for _, n := range rec.Nominations {
		if _, err := models.ParseNomination(string(n)); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, registerResponse{
				SubmissionResult: models.SubmissionResult{Message: "Неизвестная номинация: " + string(n)},
				Errors:           models.FieldErrors{models.FieldNomination: "Неизвестная номинация"},
			})
			return
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		noms = append(noms, n)
	}
	rec.Nominations = noms

	form := registration.NewForm(h.submitter)
	if err := form.Fill(rec); err != nil {
		writeJSON(w, http.StatusConflict, registerResponse{SubmissionResult: models.SubmissionResult{Message: err.Error()}})
		return
	}
	// A started sync runs to completion even if the client goes away; the
	// outbound HTTP timeout bounds it.
	res, err := form.Submit(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, registration.ErrInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, registerResponse{
			SubmissionResult: models.SubmissionResult{Message: "Заполните все поля формы"},
			Errors:           form.Errors(),
		})
	case err != nil:
		h.log.Warn("registration not saved",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusBadGateway, registerResponse{SubmissionResult: res})
	default:
		writeJSON(w, http.StatusOK, registerResponse{SubmissionResult: res})
	}
}

// export streams the ledger as CSV; the link is signed with EXPORT_SECRET.
func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	if !util.ValidExportToken(h.cfg.ExportSecret, r.URL.Query().Get("token")) {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	sheet, err := h.ledger.Sheet(r.Context())
	if err != nil {
		h.log.Error("export registrations", zap.Error(err))
		http.Error(w, registration.UserMessage(err), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="registrations.csv"`)
	// BOM so spreadsheet apps detect UTF-8
	_, _ = io.WriteString(w, "\ufeff")
	if err := sheet.WriteCSV(w); err != nil {
		h.log.Error("write csv", zap.Error(err))
	}
}

// ExportURL is the signed link admins use to download the ledger.
func ExportURL(cfg config.Config) string {
	base := cfg.BasePublicURL
	if base == "" {
		base = "http://localhost" + cfg.HTTPAddr
	}
	return base + "/export/registrations.csv?token=" + util.ExportToken(cfg.ExportSecret)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
