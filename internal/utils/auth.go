package utils

import (
	"context"
	"fmt"
	"net/mail"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/normalization"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,64}$`)

// NormalizeUsername lowercases and trims, then checks the login name rule.
func NormalizeUsername(raw string) (string, error) {
	username := normalization.ParseInputString(raw)
	if username == "" {
		return "", fmt.Errorf("a username is required")
	}
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("username must be 3-64 characters of a-z, 0-9, '.', '_' or '-'")
	}
	return username, nil
}

func NormalizeEmail(raw *string) (*string, error) {
	email := normalization.ParseInputStringPtr(raw)
	if email == nil {
		return nil, nil
	}
	addr, err := mail.ParseAddress(*email)
	if err != nil || addr.Address != *email {
		return nil, fmt.Errorf("invalid email address: %q", *email)
	}
	return email, nil
}

func HashPassword(ctx context.Context, log *logger.Logger, password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Warn("Failure to hash password for user. Returning error", "error", err)
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Initials picks up to two letters for generated avatars.
func Initials(name string) string {
	var out []rune
	for _, field := range strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == '_' || r == '-'
	}) {
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

// SanitizeFileName keeps the base name and replaces anything outside a safe set.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" || out == "_" {
		return "file"
	}
	return normalization.Truncate(out, 128)
}
