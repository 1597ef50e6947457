package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"github.com/translatd/translatd/internal/resilience"
)

// Relay error codes. Every failed call is classified into exactly one.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeProviderAuth        = "provider_auth"
	CodeProviderRateLimited = "provider_rate_limited"
	CodeProviderUnavailable = "provider_unavailable"
	CodeUnknown             = "unknown"
)

// Error is the relay's outward-facing failure type. Message must be safe to
// show to callers; raw vendor payloads stay in logs.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, message string, httpStatus int) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus}
}

// statusFor maps a relay code to the HTTP status served to callers.
func statusFor(code string) int {
	switch code {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeProviderAuth:
		return http.StatusBadGateway
	case CodeProviderRateLimited:
		return http.StatusTooManyRequests
	case CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the caller-safe description for a relay code.
func messageFor(code string) string {
	switch code {
	case CodeInvalidRequest:
		return "the provider rejected the request as invalid"
	case CodeProviderAuth:
		return "every configured credential was rejected by the provider"
	case CodeProviderRateLimited:
		return "the provider is rate limiting requests"
	case CodeProviderUnavailable:
		return "the provider is unreachable or overloaded"
	default:
		return "the provider call failed unexpectedly"
	}
}

// classifyStatus buckets a vendor HTTP status into a relay code.
func classifyStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeProviderAuth
	case status == http.StatusTooManyRequests:
		return CodeProviderRateLimited
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return CodeInvalidRequest
	case status == http.StatusRequestTimeout || status >= 500:
		return CodeProviderUnavailable
	}
	return CodeUnknown
}

func classified(code string) *Error {
	return NewError(code, messageFor(code), statusFor(code))
}

// Classify maps an arbitrary vendor error onto the relay taxonomy. The
// resulting message never carries vendor payloads; use ErrorDetail for logs.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr
	}

	if resilience.IsTimeout(err) {
		return NewError(CodeProviderUnavailable, "the provider did not answer in time", statusFor(CodeProviderUnavailable))
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NewError(CodeProviderUnavailable, "the provider is suspended after repeated failures", statusFor(CodeProviderUnavailable))
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classified(classifyStatus(apiErr.Code))
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return classified(classifyStatus(oaiErr.StatusCode))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return classified(CodeProviderUnavailable)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classified(CodeProviderUnavailable)
	}

	return classified(CodeUnknown)
}

// IsAuth reports whether err classifies as a credential rejection.
func IsAuth(err error) bool {
	relayErr := Classify(err)
	return relayErr != nil && relayErr.Code == CodeProviderAuth
}

// ErrorDetail extracts a short vendor diagnostic for logging. SDK errors give
// up their structured message; anything else is scanned for an embedded JSON
// error body. Never return this to callers.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Status
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		if oaiErr.Message != "" {
			return oaiErr.Message
		}
		return http.StatusText(oaiErr.StatusCode)
	}

	raw := err.Error()
	if i := strings.IndexByte(raw, '{'); i >= 0 && gjson.Valid(raw[i:]) {
		for _, path := range []string{"error.message", "error.status", "message"} {
			if v := gjson.Get(raw[i:], path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	return raw
}

// Vendor 4xx responses are caller mistakes and must not trip the catalogue
// breaker. Registered here to avoid an import cycle with resilience.
func init() {
	resilience.DefaultIsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		return Classify(err).Code == CodeInvalidRequest
	}
}
