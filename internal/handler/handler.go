// Package handler содержит HTTP-обработчики API сервиса префондирования.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/prefunding-system/internal/composer"
	"github.com/mmeshcher/prefunding-system/internal/gate"
	"github.com/mmeshcher/prefunding-system/internal/middleware"
	"github.com/mmeshcher/prefunding-system/internal/model"
	"github.com/mmeshcher/prefunding-system/internal/service"
	"github.com/mmeshcher/prefunding-system/internal/session"
	"github.com/mmeshcher/prefunding-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	StartSession(ctx context.Context, pipelineName, clientID string) (*session.Session, error)
	GetSession(id string) (*session.Session, error)
	VerifyCode(sessionID, code string) (string, error)
	AttachReceipt(sessionID string, f model.ReceiptFile) error
	RemoveReceipt(sessionID string) error
	Submit(ctx context.Context, sessionID, amount string) (*session.Session, model.FundingRequest, error)
}

// Handler реализует HTTP-обработчики API сервиса префондирования.
type Handler struct {
	service           Service
	logger            *zap.Logger
	sessionMiddleware *middleware.SessionMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, sm *middleware.SessionMiddleware) *Handler {
	return &Handler{
		service:           s,
		logger:            logger,
		sessionMiddleware: sm,
	}
}

type sessionResponse struct {
	State           string `json:"state"`
	ClientName      string `json:"client_name,omitempty"`
	CountryCode     string `json:"country_code,omitempty"`
	ReceiptRequired bool   `json:"receipt_required"`
	ReceiptAttached bool   `json:"receipt_attached"`
}

func newSessionResponse(sess *session.Session) sessionResponse {
	resp := sessionResponse{State: sess.State()}

	if sess.Client != nil {
		resp.ClientName = sess.Client.CompanyName
		resp.CountryCode = sess.Client.CountryCode
		resp.ReceiptRequired = sess.Pipeline.ReceiptRequired(sess.Client)
	}
	if sess.Composer != nil {
		resp.ReceiptAttached = sess.Composer.HasReceipt()
	}

	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// sessionFromRequest возвращает сессию запроса, проверяя cookie и соответствие
// конфигурации конвейера в маршруте.
func (h *Handler) sessionFromRequest(r *http.Request) (*session.Session, int) {
	id, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		return nil, http.StatusUnauthorized
	}

	sess, err := h.service.GetSession(id)
	if err != nil {
		return nil, http.StatusUnauthorized
	}

	if sess.Pipeline.Name != chi.URLParam(r, "pipeline") {
		return nil, http.StatusNotFound
	}

	return sess, 0
}

// StartSession создаёт сессию для клиента и устанавливает cookie сессии.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	pipelineName := chi.URLParam(r, "pipeline")
	clientID := chi.URLParam(r, "clientID")

	sess, err := h.service.StartSession(r.Context(), pipelineName, clientID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPipeline) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("start session error", zap.Error(err), zap.String("clientID", clientID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.sessionMiddleware.SetSessionCookie(w, sess.ID)
	h.writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// GetSession возвращает текущее состояние сессии.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, status := h.sessionFromRequest(r)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	h.writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Verify сверяет введённый код доступа с кодом клиента сессии.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	sess, status := h.sessionFromRequest(r)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	state, err := h.service.VerifyCode(sess.ID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, gate.ErrCodeLength):
			h.writeJSON(w, http.StatusBadRequest, verifyResponse{State: state, Error: err.Error()})
		case errors.Is(err, gate.ErrCodeMismatch):
			h.writeJSON(w, http.StatusUnauthorized, verifyResponse{State: state, Error: err.Error()})
		default:
			h.logger.Error("verify code error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, verifyResponse{State: state})
}

// receiptFormOverhead — запас на служебные части multipart-формы сверх самого файла.
const receiptFormOverhead = 1 << 20

// AttachReceipt принимает файл подтверждения перевода из multipart-формы.
func (h *Handler) AttachReceipt(w http.ResponseWriter, r *http.Request) {
	sess, status := h.sessionFromRequest(r)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxReceiptSize+receiptFormOverhead)

	if err := r.ParseMultipartForm(validation.MaxReceiptSize + receiptFormOverhead); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	receipt := model.ReceiptFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}

	if err := h.service.AttachReceipt(sess.ID, receipt); err != nil {
		h.respondReceiptError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// RemoveReceipt удаляет прикреплённое подтверждение до отправки заявки.
func (h *Handler) RemoveReceipt(w http.ResponseWriter, r *http.Request) {
	sess, status := h.sessionFromRequest(r)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := h.service.RemoveReceipt(sess.ID); err != nil {
		h.respondReceiptError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) respondReceiptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, service.ErrNotVerified):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, composer.ErrReceiptNotSupported):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, validation.ErrUnsupportedReceiptType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, validation.ErrReceiptTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, composer.ErrSubmitInFlight), errors.Is(err, composer.ErrAlreadyCompleted):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	default:
		h.logger.Error("receipt error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type submitRequest struct {
	Amount string `json:"amount"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	State     string `json:"state"`
	Amount    string `json:"amount"`
}

// Submit отправляет заявку на префондирование с указанной суммой.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, status := h.sessionFromRequest(r)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sess, created, err := h.service.Submit(r.Context(), sess.ID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotVerified):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, validation.ErrInvalidAmount), errors.Is(err, composer.ErrReceiptMissing):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, composer.ErrSubmitInFlight), errors.Is(err, composer.ErrAlreadyCompleted):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("submit funding request error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, submitResponse{
		RequestID: created.ID,
		State:     string(sess.Composer.State()),
		Amount:    sess.Composer.DisplayAmount(),
	})
}
