package validation

import (
	"errors"

	"github.com/mmeshcher/prefunding-system/internal/model"
)

// MaxReceiptSize — максимальный размер файла подтверждения в байтах.
const MaxReceiptSize = 5 * 1024 * 1024

// ErrUnsupportedReceiptType возвращается для файла недопустимого MIME-типа.
var (
	ErrUnsupportedReceiptType = errors.New("receipt must be a PDF, JPEG or PNG file")
	// ErrReceiptTooLarge возвращается, если файл превышает MaxReceiptSize.
	ErrReceiptTooLarge = errors.New("receipt exceeds the maximum allowed size")
)

var allowedReceiptTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// ValidateReceipt проверяет MIME-тип и размер файла подтверждения.
// Размер проверяется независимо от типа: файл в 5 242 881 байт отклоняется всегда.
func ValidateReceipt(f model.ReceiptFile) error {
	if f.Size > MaxReceiptSize {
		return ErrReceiptTooLarge
	}

	if _, ok := allowedReceiptTypes[f.ContentType]; !ok {
		return ErrUnsupportedReceiptType
	}

	return nil
}
