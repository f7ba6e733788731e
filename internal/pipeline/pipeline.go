// Package pipeline описывает конфигурации конвейера префондирования.
package pipeline

import (
	"strings"

	"github.com/mmeshcher/prefunding-system/internal/model"
)

// verticalWithoutReceipt — вертикаль, для которой подтверждение перевода не требуется.
const verticalWithoutReceipt = "bill payments"

// Pipeline задаёт параметры одной конфигурации конвейера: имена коллекций
// и поддержку загрузки подтверждений.
type Pipeline struct {
	Name          string
	ClientsTable  string
	RequestsTable string
	UploadEnabled bool
}

// Primary — основная конфигурация без загрузки подтверждений.
var Primary = Pipeline{
	Name:          "primary",
	ClientsTable:  "clients",
	RequestsTable: "prefunding",
	UploadEnabled: false,
}

// Secondary — дублирующая конфигурация с условной загрузкой подтверждений.
var Secondary = Pipeline{
	Name:          "secondary",
	ClientsTable:  "clients_duplicate",
	RequestsTable: "prefunding_v2",
	UploadEnabled: true,
}

// ByName возвращает конфигурацию конвейера по имени маршрута.
func ByName(name string) (Pipeline, bool) {
	switch name {
	case Primary.Name:
		return Primary, true
	case Secondary.Name:
		return Secondary, true
	}
	return Pipeline{}, false
}

// ReceiptRequired сообщает, обязана ли заявка клиента содержать подтверждение
// перевода: вертикаль указана и не равна "bill payments" без учёта регистра.
// Пустая вертикаль считается отсутствующей.
func (p Pipeline) ReceiptRequired(c *model.Client) bool {
	if !p.UploadEnabled || c == nil || c.Vertical == nil {
		return false
	}

	v := strings.ToLower(strings.TrimSpace(*c.Vertical))
	if v == "" {
		return false
	}

	return v != verticalWithoutReceipt
}
