package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/openai/openai-go"
	"google.golang.org/genai"

	"github.com/translatd/translatd/internal/resilience"
)

func TestClassifyGeminiStatuses(t *testing.T) {
	cases := []struct {
		status   int
		wantCode string
		wantHTTP int
	}{
		{401, CodeProviderAuth, http.StatusBadGateway},
		{403, CodeProviderAuth, http.StatusBadGateway},
		{429, CodeProviderRateLimited, http.StatusTooManyRequests},
		{400, CodeInvalidRequest, http.StatusBadRequest},
		{404, CodeInvalidRequest, http.StatusBadRequest},
		{500, CodeProviderUnavailable, http.StatusServiceUnavailable},
		{503, CodeProviderUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		err := genai.APIError{Code: tc.status, Message: "upstream detail"}
		got := Classify(err)
		if got.Code != tc.wantCode {
			t.Errorf("status %d: expected code %s, got %s", tc.status, tc.wantCode, got.Code)
		}
		if got.HTTPStatus != tc.wantHTTP {
			t.Errorf("status %d: expected HTTP %d, got %d", tc.status, tc.wantHTTP, got.HTTPStatus)
		}
	}
}

func TestClassifyOpenAIError(t *testing.T) {
	got := Classify(&openai.Error{StatusCode: 429})
	if got.Code != CodeProviderRateLimited {
		t.Errorf("expected %s, got %s", CodeProviderRateLimited, got.Code)
	}

	got = Classify(&openai.Error{StatusCode: 401})
	if got.Code != CodeProviderAuth {
		t.Errorf("expected %s, got %s", CodeProviderAuth, got.Code)
	}
}

func TestClassifyTimeoutsAsUnavailable(t *testing.T) {
	if got := Classify(timeout.ErrExceeded); got.Code != CodeProviderUnavailable {
		t.Errorf("policy timeout: expected %s, got %s", CodeProviderUnavailable, got.Code)
	}
	if got := Classify(context.DeadlineExceeded); got.Code != CodeProviderUnavailable {
		t.Errorf("context deadline: expected %s, got %s", CodeProviderUnavailable, got.Code)
	}
}

func TestClassifyKeepsRelayErrors(t *testing.T) {
	original := NewError(CodeInvalidRequest, "target_language is required", 400)
	got := Classify(fmt.Errorf("handler: %w", original))
	if got != original {
		t.Errorf("expected the wrapped relay error back, got %+v", got)
	}
}

func TestClassifyUnknownError(t *testing.T) {
	got := Classify(errors.New("surprising failure"))
	if got.Code != CodeUnknown {
		t.Errorf("expected %s, got %s", CodeUnknown, got.Code)
	}
	if got.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got.HTTPStatus)
	}
}

func TestClassifyNeverEchoesVendorPayload(t *testing.T) {
	err := genai.APIError{Code: 429, Message: `{"reason":"RATE_LIMIT","key":"AIzaSyVerySecret"}`}
	got := Classify(err)
	if got.Message == "" {
		t.Fatal("expected a caller-safe message")
	}
	if got.Message == err.Message {
		t.Error("classification must not pass the vendor payload through")
	}
}

func TestErrorDetailExtractsEmbeddedJSON(t *testing.T) {
	err := fmt.Errorf(`vendor call failed: {"error":{"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	if got := ErrorDetail(err); got != "quota exceeded" {
		t.Errorf("expected extracted message, got %q", got)
	}
}

func TestErrorDetailPrefersSDKMessage(t *testing.T) {
	if got := ErrorDetail(genai.APIError{Code: 500, Message: "backend hiccup"}); got != "backend hiccup" {
		t.Errorf("expected SDK message, got %q", got)
	}
	if got := ErrorDetail(&openai.Error{StatusCode: 503}); got != http.StatusText(503) {
		t.Errorf("expected status text fallback, got %q", got)
	}
}

func TestBreakerTreatsCallerMistakesAsSuccess(t *testing.T) {
	isSuccessful := resilience.DefaultIsSuccessful
	if isSuccessful == nil {
		t.Fatal("expected the provider package to register a breaker callback")
	}

	if !isSuccessful(nil) {
		t.Error("nil error should be successful")
	}
	if !isSuccessful(NewError(CodeInvalidRequest, "bad model", 400)) {
		t.Error("caller mistakes must not count as breaker failures")
	}
	if isSuccessful(genai.APIError{Code: 503}) {
		t.Error("vendor outages must count as breaker failures")
	}
}
