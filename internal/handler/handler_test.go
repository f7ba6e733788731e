package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/prefunding-system/internal/composer"
	"github.com/mmeshcher/prefunding-system/internal/gate"
	"github.com/mmeshcher/prefunding-system/internal/middleware"
	"github.com/mmeshcher/prefunding-system/internal/model"
	"github.com/mmeshcher/prefunding-system/internal/pipeline"
	"github.com/mmeshcher/prefunding-system/internal/service"
	"github.com/mmeshcher/prefunding-system/internal/session"
	"github.com/mmeshcher/prefunding-system/internal/validation"
)

type noopRecorder struct{}

func (noopRecorder) Record(ctx context.Context, req model.FundingRequest) error { return nil }

type stubService struct {
	startSession *session.Session
	startErr     error

	getSession *session.Session
	getErr     error

	verifyState string
	verifyErr   error

	attachErr error
	removeErr error

	submitSession *session.Session
	submitRequest model.FundingRequest
	submitErr     error
}

func (s *stubService) StartSession(ctx context.Context, pipelineName, clientID string) (*session.Session, error) {
	return s.startSession, s.startErr
}

func (s *stubService) GetSession(id string) (*session.Session, error) {
	return s.getSession, s.getErr
}

func (s *stubService) VerifyCode(sessionID, code string) (string, error) {
	return s.verifyState, s.verifyErr
}

func (s *stubService) AttachReceipt(sessionID string, f model.ReceiptFile) error {
	return s.attachErr
}

func (s *stubService) RemoveReceipt(sessionID string) error {
	return s.removeErr
}

func (s *stubService) Submit(ctx context.Context, sessionID, amount string) (*session.Session, model.FundingRequest, error) {
	return s.submitSession, s.submitRequest, s.submitErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	sm := middleware.NewSessionMiddleware("test-secret")

	return NewHandler(svc, logger, sm)
}

func newPrimarySession() *session.Session {
	return &session.Session{
		ID:       "session-1",
		Pipeline: pipeline.Primary,
		Gate:     gate.New(),
	}
}

func sessionCookie(t *testing.T, h *Handler, sessionID string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.sessionMiddleware.SetSessionCookie(rec, sessionID)

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no session cookie set")
	}
	return cookies[0]
}

func TestStartSession_SetsCookie(t *testing.T) {
	sess := newPrimarySession()
	sess.Client = &model.Client{ID: "c1", CompanyName: "Acme Pagos", CountryCode: "MX", PIN: 12345678}
	sess.Gate.ClientLoaded(12345678)

	svc := &stubService{startSession: sess}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/primary/clients/c1/sessions", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("session cookie not set")
	}

	var body sessionResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.State != "awaiting_code" {
		t.Fatalf("state = %q, want awaiting_code", body.State)
	}
	if body.ClientName != "Acme Pagos" {
		t.Fatalf("client_name = %q, want Acme Pagos", body.ClientName)
	}
}

func TestStartSession_UnknownPipeline(t *testing.T) {
	h := newTestHandler(t, &stubService{startErr: service.ErrUnknownPipeline})

	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/tertiary/clients/c1/sessions", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestGetSession_WithoutCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/prefunding/primary/session", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetSession_PipelineMismatch(t *testing.T) {
	sess := newPrimarySession()
	svc := &stubService{getSession: sess}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/prefunding/secondary/session", nil)
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestVerify_Mismatch(t *testing.T) {
	sess := newPrimarySession()
	svc := &stubService{
		getSession:  sess,
		verifyState: string(gate.StateRejected),
		verifyErr:   gate.ErrCodeMismatch,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(verifyRequest{Code: "87654321"})
	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/primary/session/verify", bytes.NewReader(body))
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	var resp verifyResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != string(gate.StateRejected) {
		t.Fatalf("state = %q, want rejected", resp.State)
	}
	if resp.Error == "" {
		t.Fatalf("error message missing")
	}
}

func TestVerify_ShortCode(t *testing.T) {
	sess := newPrimarySession()
	svc := &stubService{
		getSession:  sess,
		verifyState: string(gate.StateAwaitingCode),
		verifyErr:   gate.ErrCodeLength,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(verifyRequest{Code: "1234"})
	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/primary/session/verify", bytes.NewReader(body))
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestSubmit_Completed(t *testing.T) {
	sess := newPrimarySession()
	sess.Gate.ClientLoaded(12345678)
	sess.Gate.Enter("12345678")
	if err := sess.Gate.Confirm(); err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}

	sess.Composer = composer.New("c1", false, nil, noopRecorder{}, nil)
	sess.Composer.SetAmount("1234.56")
	created, err := sess.Composer.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	svc := &stubService{
		getSession:    sess,
		submitSession: sess,
		submitRequest: created,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(submitRequest{Amount: "1234.56"})
	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/primary/session/submit", bytes.NewReader(body))
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp submitResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != string(composer.StateCompleted) {
		t.Fatalf("state = %q, want completed", resp.State)
	}
	if resp.Amount != "1.234,56" {
		t.Fatalf("amount = %q, want 1.234,56", resp.Amount)
	}
	if resp.RequestID != created.ID {
		t.Fatalf("request_id = %q, want %q", resp.RequestID, created.ID)
	}
}

func TestSubmit_MissingReceipt(t *testing.T) {
	sess := newPrimarySession()
	svc := &stubService{
		getSession: sess,
		submitErr:  composer.ErrReceiptMissing,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(submitRequest{Amount: "100"})
	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/primary/session/submit", bytes.NewReader(body))
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func multipartReceipt(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="receipt"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return &buf, mw.FormDataContentType()
}

func TestAttachReceipt_OK(t *testing.T) {
	sess := newPrimarySession()
	sess.Pipeline = pipeline.Secondary
	svc := &stubService{getSession: sess}
	h := newTestHandler(t, svc)

	body, contentType := multipartReceipt(t, "transfer.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/secondary/session/receipt", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

func TestAttachReceipt_UnsupportedType(t *testing.T) {
	sess := newPrimarySession()
	sess.Pipeline = pipeline.Secondary
	svc := &stubService{
		getSession: sess,
		attachErr:  validation.ErrUnsupportedReceiptType,
	}
	h := newTestHandler(t, svc)

	body, contentType := multipartReceipt(t, "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/prefunding/secondary/session/receipt", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnsupportedMediaType)
	}
}

func TestRemoveReceipt_BeforeVerification(t *testing.T) {
	sess := newPrimarySession()
	sess.Pipeline = pipeline.Secondary
	svc := &stubService{
		getSession: sess,
		removeErr:  service.ErrNotVerified,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/prefunding/secondary/session/receipt", nil)
	req.AddCookie(sessionCookie(t, h, sess.ID))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}
