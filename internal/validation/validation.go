// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
	maxFullNameLen = 80
	maxBioLen      = 500
	maxYearLen     = 20
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return errors.New("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("Please enter a valid email address")
	}
	return nil
}

// ValidatePassword checks if a password meets the signup requirements
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("Password must be at least %d characters long", minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("Password must not exceed %d characters", maxPasswordLen)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower {
		return errors.New("Password must mix uppercase and lowercase letters")
	}
	if !hasDigit {
		return errors.New("Password must contain at least one digit")
	}
	return nil
}

// ValidatePasswordConfirmation checks the repeated password.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return errors.New("Passwords do not match")
	}
	return nil
}

// ValidateFullName requires a non-blank name of sensible length.
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("Full name is required")
	}
	if utf8.RuneCountInString(name) > maxFullNameLen {
		return fmt.Errorf("Full name must not exceed %d characters", maxFullNameLen)
	}
	return nil
}

// ValidateProfile checks the optional profile fields.
func ValidateProfile(year, bio string) error {
	if utf8.RuneCountInString(year) > maxYearLen {
		return fmt.Errorf("Year must not exceed %d characters", maxYearLen)
	}
	if utf8.RuneCountInString(bio) > maxBioLen {
		return fmt.Errorf("Bio must not exceed %d characters", maxBioLen)
	}
	return nil
}
