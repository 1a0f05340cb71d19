package validation

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// MinPasswordLength минимальная длина пароля в символах.
const MinPasswordLength = 8

// MaxPasswordBytes ограничение bcrypt: всё, что длиннее 72 байт, он не принимает.
const MaxPasswordBytes = 72

var (
	ErrPasswordTooShort = fmt.Errorf("Password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("Password must be at most %d bytes", MaxPasswordBytes)
)

// ValidatePassword проверяет пароль: не короче 8 символов и не длиннее 72 байт.
// Текст ErrPasswordTooShort клиенты проверяют буквально ("8 characters").
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// IsPasswordTooLong сообщает, что пароль отклонён из-за длины в байтах.
func IsPasswordTooLong(err error) bool {
	return errors.Is(err, ErrPasswordTooLong)
}
