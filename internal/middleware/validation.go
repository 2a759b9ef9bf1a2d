package middleware

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct runs validator tags over an already-bound request payload.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}

// SanitizeString removes null bytes and control characters except newlines
// and tabs, then trims whitespace.
func SanitizeString(input string) string {
	input = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`).ReplaceAllString(input, "")
	return strings.TrimSpace(input)
}

// ValidHostname accepts hostnames and IPv4/IPv6 literals for probe targets.
func ValidHostname(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	return validate.Var(host, "hostname|ip") == nil
}
