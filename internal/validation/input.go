package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxNameLength     = 100
	MaxBioLength      = 500
	MaxPictureURLLen  = 2048
	MaxEmailLength    = 254
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._%+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// NormalizeEmail приводит email к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email. Адреса Apple private relay
// (xyz@privaterelay.appleid.com) проходят как обычные.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email is too long")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("invalid email format")
	}

	localPart, domainPart := parts[0], parts[1]
	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("invalid email format")
	}
	if !emailLocalRegex.MatchString(localPart) || strings.HasPrefix(localPart, ".") || strings.HasSuffix(localPart, ".") {
		return fmt.Errorf("invalid email format")
	}
	if !emailDomainRegex.MatchString(domainPart) || strings.Contains(domainPart, "..") {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// ValidateName проверяет отображаемое имя: печатные символы, до MaxNameLength.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateLength("name", name, 1, MaxNameLength); err != nil {
		return err
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("name contains invalid characters")
		}
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if err := ValidateLength("username", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, digits and underscore")
	}
	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("username must not start with a digit")
	}
	return nil
}

// ValidateBio проверяет текст «о себе».
func ValidateBio(bio string) error {
	return ValidateLength("bio", bio, 0, MaxBioLength)
}

// ValidatePictureURL принимает только абсолютные http(s) ссылки.
func ValidatePictureURL(raw string) error {
	if len(raw) > MaxPictureURLLen {
		return fmt.Errorf("picture url is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("picture must be an absolute http(s) url")
	}
	return nil
}
