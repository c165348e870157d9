package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLValidationError represents a URL validation failure
type URLValidationError struct {
	Field   string
	Message string
	URL     string
}

func (e URLValidationError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ValidateURL accepts empty strings and absolute http(s) URLs with a host.
func ValidateURL(urlString, fieldName string, requireHTTPS bool) error {
	if urlString == "" {
		return nil
	}

	fail := func(msg string) error {
		return URLValidationError{Field: fieldName, Message: msg, URL: urlString}
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return fail("invalid URL format")
	}
	if parsedURL.Scheme == "" {
		return fail("URL must include a scheme (http:// or https://)")
	}
	if parsedURL.Host == "" {
		return fail("URL must include a host")
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if requireHTTPS && scheme != "https" {
		return fail("URL must use HTTPS")
	}
	if scheme != "http" && scheme != "https" {
		return fail("URL scheme must be http or https")
	}
	return nil
}
