package auth

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const passwordHashCost = 10

const passwordSymbols = "@$!%*?&"

// IsStrongPassword requires at least 8 characters with at least one
// lowercase letter, one uppercase letter, one digit, and one symbol
// from the fixed set. Characters outside letters, digits, and that set
// disqualify the password outright.
func IsStrongPassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r) && r <= unicode.MaxASCII:
			hasLower = true
		case unicode.IsUpper(r) && r <= unicode.MaxASCII:
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		default:
			return false
		}
	}

	return hasLower && hasUpper && hasDigit && hasSymbol
}

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// dummyPasswordHash is compared against when the username does not
// exist, so the unknown-user path costs the same bcrypt work as a
// wrong password for a real account.
var dummyPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), passwordHashCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()
