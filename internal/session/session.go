// Package session хранит состояние визитов клиентов между HTTP-запросами.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/prefunding-system/internal/composer"
	"github.com/mmeshcher/prefunding-system/internal/gate"
	"github.com/mmeshcher/prefunding-system/internal/model"
	"github.com/mmeshcher/prefunding-system/internal/pipeline"
)

// ErrSessionNotFound возвращается для неизвестной или истёкшей сессии.
var ErrSessionNotFound = errors.New("session not found")

// Session объединяет загруженную запись клиента, проверку идентичности и
// составитель заявки одного визита. Данные сессии не разделяются между визитами.
type Session struct {
	ID       string
	Pipeline pipeline.Pipeline
	Client   *model.Client
	Gate     *gate.Gate
	Composer *composer.Composer

	mu       sync.Mutex
	lastSeen time.Time
}

// State возвращает сводное состояние сессии: до подтверждения идентичности —
// состояние проверки кода, после — состояние составителя заявки.
func (s *Session) State() string {
	if s.Gate.Verified() && s.Composer != nil {
		return string(s.Composer.State())
	}
	return string(s.Gate.State())
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}

// Manager хранит активные сессии в памяти.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager создаёт пустой менеджер сессий.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Create регистрирует новую сессию для указанной конфигурации конвейера.
func (m *Manager) Create(p pipeline.Pipeline) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Pipeline: p,
		Gate:     gate.New(),
		lastSeen: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s
}

// Get возвращает сессию по идентификатору и продлевает её время жизни.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	s.touch(time.Now())
	return s, nil
}

// PurgeExpired удаляет сессии, не использовавшиеся дольше ttl,
// и возвращает число удалённых.
func (m *Manager) PurgeExpired(ttl time.Duration) int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, s := range m.sessions {
		if s.expired(now, ttl) {
			delete(m.sessions, id)
			purged++
		}
	}

	return purged
}

// Len возвращает число активных сессий.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
