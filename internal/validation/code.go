// Package validation содержит функции валидации пользовательского ввода.
package validation

import "strings"

// AccessCodeLength — требуемая длина кода доступа в цифрах.
const AccessCodeLength = 8

// SanitizeAccessCode приводит произвольный ввод к коду доступа:
// остаются только цифры, не более восьми символов, остальное отбрасывается.
func SanitizeAccessCode(raw string) string {
	var b strings.Builder

	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == AccessCodeLength {
			break
		}
	}

	return b.String()
}
