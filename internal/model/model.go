// Package model содержит доменные сущности сервиса префондирования.
package model

import "time"

// PlaceholderWalletAddress — фиксированный адрес расчётов, подставляемый в каждую заявку.
const PlaceholderWalletAddress = "0x1234567890"

// Client представляет клиента, которому доступна подача заявок на префондирование.
// Запись неизменяема в рамках сессии и загружается один раз.
type Client struct {
	ID          string
	CompanyName string
	CountryCode string
	CreatedAt   time.Time
	PIN         int64
	Vertical    *string
}

// RequestStatus описывает статус заявки на префондирование.
type RequestStatus string

const (
	// RequestStatusPending — статус только что созданной заявки.
	RequestStatusPending RequestStatus = "pending"
)

// FundingRequest описывает заявку клиента на префондирование.
// Создаётся ровно один раз за успешную отправку и после этого не изменяется.
type FundingRequest struct {
	ID              string
	ClientID        string
	AmountCents     int64
	WalletAddress   string
	Status          RequestStatus
	ProcessedAt     time.Time
	ReceiptURL      *string
	ReceiptFileName *string
}

// ReceiptFile — подтверждение перевода, существующее только в памяти
// до успешной загрузки в объектное хранилище или удаления пользователем.
type ReceiptFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}
