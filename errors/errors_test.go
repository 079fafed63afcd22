package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindMissingVersion, "MissingVersion"},
		{KindUnsupportedVersion, "UnsupportedVersion"},
		{KindUnknownResource, "UnknownResource"},
		{KindMethodNotAllowed, "MethodNotAllowed"},
		{KindUnreachable, "Unreachable"},
		{KindTimeout, "Timeout"},
		{KindUpstreamRejected, "UpstreamRejected"},
		{KindMalformedUpstreamResponse, "MalformedUpstreamResponse"},
		{KindCircuitOpen, "CircuitOpen"},
		{KindPartialFailure, "PartialFailure"},
		{KindAllBackendsFailed, "AllBackendsFailed"},
		{KindUnauthorized, "Unauthorized"},
		{KindForbidden, "Forbidden"},
		{KindInternal, "Internal"},
		{Kind(999), "Internal"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.kind.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindMissingVersion, http.StatusBadRequest},
		{KindUnsupportedVersion, http.StatusBadRequest},
		{KindUnknownResource, http.StatusNotFound},
		{KindMethodNotAllowed, http.StatusMethodNotAllowed},
		{KindUnreachable, http.StatusBadGateway},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindUpstreamRejected, http.StatusBadGateway},
		{KindMalformedUpstreamResponse, http.StatusBadGateway},
		{KindCircuitOpen, http.StatusServiceUnavailable},
		{KindPartialFailure, http.StatusBadGateway},
		{KindAllBackendsFailed, http.StatusBadGateway},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			if got := test.kind.HTTPStatus(); got != test.expected {
				t.Errorf("expected %d, got %d", test.expected, got)
			}
		})
	}
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"unreachable", New(KindUnreachable, "test", "Call", "refused"), true},
		{"timeout", New(KindTimeout, "test", "Call", "deadline"), true},
		{"upstream rejected", New(KindUpstreamRejected, "test", "Call", "409"), false},
		{"malformed response", New(KindMalformedUpstreamResponse, "test", "Call", "bad json"), false},
		{"circuit open", New(KindCircuitOpen, "test", "Call", "open"), false},
		{"unsupported version", New(KindUnsupportedVersion, "test", "Resolve", "v9"), false},
		{"context deadline", context.DeadlineExceeded, true},
		{"plain error", fmt.Errorf("something broke"), false},
		{"wrapped retriable", fmt.Errorf("outer: %w", New(KindUnreachable, "test", "Call", "refused")), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsRetriable(test.err); got != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, got, test.err)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil error", nil, KindInternal},
		{"classified", New(KindUnknownResource, "registry", "Resolve", "no descriptor"), KindUnknownResource},
		{"wrapped classified", fmt.Errorf("outer: %w", New(KindCircuitOpen, "breaker", "Allow", "open")), KindCircuitOpen},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindTimeout},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := KindOf(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(base, KindUnreachable, "httpbackend", "Fetch", "upstream request")

	if err == nil {
		t.Fatal("expected non-nil error")
	}
	expected := "httpbackend.Fetch: upstream request failed: connection refused"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to match base via errors.Is")
	}
	if KindOf(err) != KindUnreachable {
		t.Errorf("expected KindUnreachable, got %v", KindOf(err))
	}
}

func TestWrap_NilError(t *testing.T) {
	if err := Wrap(nil, KindTimeout, "test", "Call", "noop"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWithFailedAdapters(t *testing.T) {
	err := New(KindPartialFailure, "aggregate", "Merge", "required adapter failed")
	err = WithFailedAdapters(err, KindPartialFailure, []string{"archive-db", "vlbi-store"})

	got := FailedAdapters(err)
	if len(got) != 2 || got[0] != "archive-db" || got[1] != "vlbi-store" {
		t.Errorf("unexpected failed adapters: %v", got)
	}

	// Unclassified errors get promoted to a classified carrier.
	plain := WithFailedAdapters(errors.New("all failed"), KindAllBackendsFailed, []string{"a"})
	if KindOf(plain) != KindAllBackendsFailed {
		t.Errorf("expected KindAllBackendsFailed, got %v", KindOf(plain))
	}
	if fa := FailedAdapters(plain); len(fa) != 1 || fa[0] != "a" {
		t.Errorf("unexpected failed adapters: %v", fa)
	}
}

func TestFailedAdapters_None(t *testing.T) {
	if got := FailedAdapters(errors.New("plain")); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
