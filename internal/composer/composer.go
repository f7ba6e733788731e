// Package composer реализует сбор и отправку заявки на префондирование.
package composer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/prefunding-system/internal/model"
	"github.com/mmeshcher/prefunding-system/internal/validation"
)

// State описывает состояние составления заявки.
type State string

const (
	// StateAmountEntry — ожидается ввод суммы.
	StateAmountEntry State = "amount_entry"
	// StateReceiptAttach — ожидается прикрепление подтверждения перевода.
	StateReceiptAttach State = "receipt_attach"
	// StateSubmitting — заявка отправляется, повторная отправка блокируется.
	StateSubmitting State = "submitting"
	// StateCompleted — заявка сохранена, терминальное состояние.
	StateCompleted State = "completed"
)

// ErrSubmitInFlight возвращается при повторной отправке во время выполняющейся.
var (
	ErrSubmitInFlight = errors.New("submission already in progress")
	// ErrAlreadyCompleted возвращается после успешной отправки: заявка создаётся ровно один раз.
	ErrAlreadyCompleted = errors.New("funding request already submitted")
	// ErrReceiptMissing возвращается, если обязательное подтверждение не прикреплено.
	ErrReceiptMissing = errors.New("receipt is required for this client")
	// ErrReceiptNotSupported возвращается при прикреплении файла в конфигурации без загрузки.
	ErrReceiptNotSupported = errors.New("receipt upload is not supported")
)

// Uploader загружает подтверждение в объектное хранилище и возвращает
// постоянную ссылку на файл.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Recorder сохраняет заявку на префондирование.
type Recorder interface {
	Record(ctx context.Context, req model.FundingRequest) error
}

// Composer собирает сумму и подтверждение перевода одной сессии и отправляет
// заявку. Отправка защищена явным состоянием StateSubmitting: повторный вызов
// во время выполняющейся отправки отклоняется.
type Composer struct {
	mu              sync.Mutex
	state           State
	clientID        string
	receiptRequired bool
	amount          string
	receipt         *model.ReceiptFile
	submittedCents  int64
	requestID       string
	uploader        Uploader
	recorder        Recorder
	logger          *zap.Logger
}

// New создаёт составитель заявки для клиента. uploader может быть nil для
// конфигураций без загрузки подтверждений.
func New(clientID string, receiptRequired bool, uploader Uploader, recorder Recorder, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Composer{
		state:           StateAmountEntry,
		clientID:        clientID,
		receiptRequired: receiptRequired,
		uploader:        uploader,
		recorder:        recorder,
		logger:          logger,
	}
}

// SetAmount нормализует и сохраняет ввод суммы, возвращая сохранённое значение.
// Во время отправки и после завершения ввод игнорируется.
func (c *Composer) SetAmount(raw string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitting || c.state == StateCompleted {
		return c.amount
	}

	c.amount = validation.FormatAmount(raw)
	return c.amount
}

// Attach проверяет и прикрепляет подтверждение перевода. Недопустимый файл
// отбрасывается без смены состояния.
func (c *Composer) Attach(f model.ReceiptFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateCompleted:
		return ErrAlreadyCompleted
	}

	if c.uploader == nil {
		return ErrReceiptNotSupported
	}

	if err := validation.ValidateReceipt(f); err != nil {
		return err
	}

	c.receipt = &f
	if c.receiptRequired {
		c.state = StateReceiptAttach
	}

	return nil
}

// Remove удаляет прикреплённое подтверждение до отправки.
func (c *Composer) Remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateCompleted:
		return ErrAlreadyCompleted
	}

	c.receipt = nil
	return nil
}

// Submit проверяет собранные данные, при необходимости загружает подтверждение
// и сохраняет заявку. Загрузка и сохранение выполняются строго последовательно,
// по одной попытке каждая. При ошибке составитель возвращается в состояние до
// отправки, частичная запись не сохраняется.
func (c *Composer) Submit(ctx context.Context) (model.FundingRequest, error) {
	c.mu.Lock()

	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return model.FundingRequest{}, ErrSubmitInFlight
	case StateCompleted:
		c.mu.Unlock()
		return model.FundingRequest{}, ErrAlreadyCompleted
	}

	cents, err := validation.ParseAmountCents(c.amount)
	if err != nil {
		c.state = StateAmountEntry
		c.mu.Unlock()
		return model.FundingRequest{}, err
	}

	if c.receiptRequired && c.receipt == nil {
		c.state = StateReceiptAttach
		c.mu.Unlock()
		return model.FundingRequest{}, ErrReceiptMissing
	}

	receipt := c.receipt
	c.state = StateSubmitting
	c.mu.Unlock()

	req := model.FundingRequest{
		ID:            uuid.NewString(),
		ClientID:      c.clientID,
		AmountCents:   cents,
		WalletAddress: model.PlaceholderWalletAddress,
		Status:        model.RequestStatusPending,
		ProcessedAt:   time.Now().UTC(),
	}

	if receipt != nil {
		key := receiptKey(c.clientID, time.Now(), receipt.Name)

		url, err := c.uploader.Upload(ctx, key, receipt.ContentType, receipt.Data)
		if err != nil {
			c.revert()
			return model.FundingRequest{}, fmt.Errorf("upload receipt: %w", err)
		}

		name := receipt.Name
		req.ReceiptURL = &url
		req.ReceiptFileName = &name
	}

	if err := c.recorder.Record(ctx, req); err != nil {
		if req.ReceiptURL != nil {
			// Загруженный файл не удаляется и не переиспользуется.
			c.logger.Warn("funding request not recorded, uploaded receipt orphaned",
				zap.String("clientID", c.clientID),
				zap.String("receiptURL", *req.ReceiptURL))
		}
		c.revert()
		return model.FundingRequest{}, fmt.Errorf("record funding request: %w", err)
	}

	c.mu.Lock()
	c.state = StateCompleted
	c.submittedCents = cents
	c.requestID = req.ID
	c.mu.Unlock()

	return req, nil
}

func (c *Composer) revert() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.receiptRequired {
		c.state = StateReceiptAttach
	} else {
		c.state = StateAmountEntry
	}
}

// receiptKey строит ключ объекта из идентификатора клиента, отметки времени
// и расширения файла.
func receiptKey(clientID string, ts time.Time, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%d%s", clientID, ts.UnixMilli(), ext)
}

// State возвращает текущее состояние составителя.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Amount возвращает сохранённый ввод суммы.
func (c *Composer) Amount() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amount
}

// HasReceipt сообщает, прикреплено ли подтверждение перевода.
func (c *Composer) HasReceipt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt != nil
}

// RequestID возвращает идентификатор созданной заявки после завершения.
func (c *Composer) RequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestID
}

// DisplayAmount возвращает отправленную сумму в формате отображения.
func (c *Composer) DisplayAmount() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return validation.FormatDisplayAmount(c.submittedCents)
}
