// Package service реализует бизнес-логику сервиса префондирования.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/prefunding-system/internal/composer"
	"github.com/mmeshcher/prefunding-system/internal/model"
	"github.com/mmeshcher/prefunding-system/internal/pipeline"
	"github.com/mmeshcher/prefunding-system/internal/session"
	"github.com/mmeshcher/prefunding-system/internal/storage"
)

const (
	sessionTTL             = 30 * time.Minute
	sessionCleanupInterval = time.Minute
)

// ErrUnknownPipeline возвращается для неизвестного имени конфигурации конвейера.
var (
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrNotVerified возвращается при обращении к составителю до подтверждения кода:
	// заявка создаётся только после успешной проверки идентичности.
	ErrNotVerified = errors.New("identity not verified")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetClient(ctx context.Context, p pipeline.Pipeline, id string) (*model.Client, error)
	CreateFundingRequest(ctx context.Context, p pipeline.Pipeline, req model.FundingRequest) error
}

// Service содержит бизнес-логику сервиса префондирования.
type Service struct {
	repo     Repository
	store    *storage.Client
	sessions *session.Manager
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом хранилища.
// store может быть nil, если объектное хранилище не настроено.
func NewService(repo Repository, store *storage.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:     repo,
		store:    store,
		sessions: session.NewManager(),
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// pipelineRecorder сохраняет заявки в коллекцию конкретного конвейера.
type pipelineRecorder struct {
	repo Repository
	p    pipeline.Pipeline
}

func (r pipelineRecorder) Record(ctx context.Context, req model.FundingRequest) error {
	return r.repo.CreateFundingRequest(ctx, r.p, req)
}

// StartSession создаёт сессию и загружает запись клиента. Если запись
// загрузить не удалось, сессия остаётся в состоянии загрузки: ошибка
// фиксируется только в логе.
func (s *Service) StartSession(ctx context.Context, pipelineName, clientID string) (*session.Session, error) {
	p, ok := pipeline.ByName(pipelineName)
	if !ok {
		return nil, ErrUnknownPipeline
	}

	sess := s.sessions.Create(p)

	client, err := s.repo.GetClient(ctx, p, clientID)
	if err != nil {
		s.logger.Error("client lookup failed",
			zap.String("pipeline", p.Name),
			zap.String("clientID", clientID),
			zap.Error(err))
		return sess, nil
	}

	var up composer.Uploader
	if p.UploadEnabled && s.store != nil {
		up = s.store
	}

	sess.Client = client
	sess.Composer = composer.New(client.ID, p.ReceiptRequired(client), up, pipelineRecorder{repo: s.repo, p: p}, s.logger)
	sess.Gate.ClientLoaded(client.PIN)

	return sess, nil
}

// GetSession возвращает сессию по идентификатору.
func (s *Service) GetSession(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

// VerifyCode передаёт введённый код проверке идентичности сессии и
// подтверждает его. Возвращает состояние проверки после попытки.
func (s *Service) VerifyCode(sessionID, code string) (string, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}

	sess.Gate.Enter(code)
	confirmErr := sess.Gate.Confirm()

	return string(sess.Gate.State()), confirmErr
}

// AttachReceipt прикрепляет подтверждение перевода к заявке сессии.
func (s *Service) AttachReceipt(sessionID string, f model.ReceiptFile) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	if !sess.Gate.Verified() || sess.Composer == nil {
		return ErrNotVerified
	}

	return sess.Composer.Attach(f)
}

// RemoveReceipt удаляет прикреплённое подтверждение перевода.
func (s *Service) RemoveReceipt(sessionID string) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	if !sess.Gate.Verified() || sess.Composer == nil {
		return ErrNotVerified
	}

	return sess.Composer.Remove()
}

// Submit отправляет заявку сессии с указанной суммой.
func (s *Service) Submit(ctx context.Context, sessionID, amount string) (*session.Session, model.FundingRequest, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, model.FundingRequest{}, err
	}

	if !sess.Gate.Verified() || sess.Composer == nil {
		return nil, model.FundingRequest{}, ErrNotVerified
	}

	if amount != "" {
		sess.Composer.SetAmount(amount)
	}

	req, err := sess.Composer.Submit(ctx)
	if err != nil {
		return sess, model.FundingRequest{}, err
	}

	return sess, req, nil
}

// StartSessionCleanup запускает фоновый процесс удаления истёкших сессий.
func (s *Service) StartSessionCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.sessions.PurgeExpired(sessionTTL); n > 0 {
					s.logger.Info("expired sessions purged", zap.Int("count", n))
				}
			}
		}
	}()
}
