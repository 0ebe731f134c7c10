// Package utils provides utility functions for the application.
package utils

import (
	"errors"
	"strings"
)

// ErrInvalidPhoneFormat indicates the supplied phone number is not a valid
// Sri Lankan mobile number in any accepted format.
var ErrInvalidPhoneFormat = errors.New("invalid phone number format")

// NormalizePhone converts a Sri Lankan mobile number into the canonical
// 94XXXXXXXXX form. Accepted inputs: 07XXXXXXXX, +947XXXXXXXX, 947XXXXXXXX.
func NormalizePhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	p = strings.TrimPrefix(p, "+")

	switch {
	case len(p) == 10 && strings.HasPrefix(p, "07"):
		p = "94" + p[1:]
	case len(p) == 11 && strings.HasPrefix(p, "947"):
		// already canonical
	default:
		return "", ErrInvalidPhoneFormat
	}

	if !isDigits(p) {
		return "", ErrInvalidPhoneFormat
	}
	return p, nil
}

// IsValidPhone reports whether the phone normalizes successfully.
func IsValidPhone(phone string) bool {
	_, err := NormalizePhone(phone)
	return err == nil
}

// MaskPhone hides the middle of a canonical number, keeping the first five
// and last three characters, e.g. 94771234567 -> 94771****567.
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return phone
	}
	return phone[:5] + "****" + phone[len(phone)-3:]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
