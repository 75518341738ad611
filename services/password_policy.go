package services

import (
	"errors"
	"fmt"
	"unicode"
)

// MinAdminPasswordLength is the shortest admin password leadctl will hash
const MinAdminPasswordLength = 12

// ValidateAdminPassword checks the admin password complexity rules and reports every rule it misses:
// length, an upper and a lower case letter, a digit and a symbol.
func ValidateAdminPassword(password string) error {
	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char) || unicode.IsSpace(char):
			hasSpecial = true
		}
	}

	var errs []error
	if len([]rune(password)) < MinAdminPasswordLength {
		errs = append(errs, fmt.Errorf("password must be at least %d characters long", MinAdminPasswordLength))
	}
	if !hasUpper {
		errs = append(errs, errors.New("password must contain at least one uppercase letter"))
	}
	if !hasLower {
		errs = append(errs, errors.New("password must contain at least one lowercase letter"))
	}
	if !hasNumber {
		errs = append(errs, errors.New("password must contain at least one number"))
	}
	if !hasSpecial {
		errs = append(errs, errors.New("password must contain at least one special character"))
	}
	return errors.Join(errs...)
}
