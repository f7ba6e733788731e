// Package gate реализует проверку идентичности клиента по коду доступа.
package gate

import (
	"errors"
	"strconv"
	"sync"

	"github.com/mmeshcher/prefunding-system/internal/validation"
)

// State описывает состояние проверки идентичности.
type State string

const (
	// StateLoading — запись клиента ещё не загружена.
	StateLoading State = "loading"
	// StateAwaitingCode — ожидается ввод кода доступа.
	StateAwaitingCode State = "awaiting_code"
	// StateVerified — идентичность подтверждена, терминальное состояние.
	StateVerified State = "verified"
	// StateRejected — код не совпал, допускается повторная попытка.
	StateRejected State = "rejected"
)

// ErrCodeLength возвращается при подтверждении кода короче восьми цифр.
var (
	ErrCodeLength = errors.New("access code must be 8 digits")
	// ErrCodeMismatch возвращается, если введённый код не совпал с кодом клиента.
	ErrCodeMismatch = errors.New("incorrect access code")
)

// Gate хранит состояние проверки кода доступа одной сессии.
// Никаких сетевых вызовов не выполняет: сравнение чисто локальное.
type Gate struct {
	mu     sync.Mutex
	state  State
	code   string
	pin    int64
	loaded bool
}

// New создаёт проверку в состоянии ожидания загрузки записи клиента.
func New() *Gate {
	return &Gate{state: StateLoading}
}

// ClientLoaded сообщает о загрузке записи клиента и переводит проверку
// в ожидание ввода кода.
func (g *Gate) ClientLoaded(pin int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		return
	}

	g.pin = pin
	g.loaded = true
	g.state = StateAwaitingCode
}

// Enter принимает сырой ввод, оставляет только цифры (не более восьми) и
// возвращает сохранённое значение. После отказа ввод возвращает проверку
// в ожидание кода — число попыток не ограничено.
func (g *Gate) Enter(raw string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateVerified {
		return g.code
	}

	g.code = validation.SanitizeAccessCode(raw)
	if g.state == StateRejected {
		g.state = StateAwaitingCode
	}

	return g.code
}

// Confirm сверяет введённый код с кодом клиента. До загрузки записи клиента
// вызов ничего не делает. Код короче восьми цифр отклоняется независимо от
// значения. Сравнение выполняется как равенство целых чисел, поэтому ведущие
// нули не учитываются.
func (g *Gate) Confirm() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.loaded || g.state == StateVerified {
		return nil
	}

	if len(g.code) < validation.AccessCodeLength {
		return ErrCodeLength
	}

	entered, err := strconv.ParseInt(g.code, 10, 64)
	if err != nil {
		return ErrCodeLength
	}

	if entered != g.pin {
		g.state = StateRejected
		g.code = ""
		return ErrCodeMismatch
	}

	g.state = StateVerified
	return nil
}

// State возвращает текущее состояние проверки.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Verified сообщает, подтверждена ли идентичность клиента.
func (g *Gate) Verified() bool {
	return g.State() == StateVerified
}

// Code возвращает текущий сохранённый ввод.
func (g *Gate) Code() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.code
}
