package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("execution reverted")
	err := Wrap(CodeChainFailure, cause, "")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped error to match its cause")
	}
	if !stdErrors.Is(err, New(CodeChainFailure, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stdErrors.Is(err, New(CodeNotConnected, "")) {
		t.Fatal("did not expect a different code to match")
	}
	if got := err.Detail(); got != "execution reverted" {
		t.Fatalf("unexpected detail %q", got)
	}
	if got := err.Message(); got != AttributesOf(CodeChainFailure).Message {
		t.Fatalf("expected default message, got %q", got)
	}
}

func TestHelpersOnForeignErrors(t *testing.T) {
	plain := stdErrors.New("boom")
	if CodeOf(plain) != CodeUnknown {
		t.Fatalf("expected UNKNOWN code, got %s", CodeOf(plain))
	}
	if StatusOf(plain) != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", StatusOf(plain))
	}
	if DetailOf(plain) != "boom" {
		t.Fatalf("unexpected detail %q", DetailOf(plain))
	}

	nested := fmt.Errorf("outer: %w", New(CodeBusy, ""))
	if CodeOf(nested) != CodeBusy {
		t.Fatalf("expected BUSY through wrapping, got %s", CodeOf(nested))
	}
	if StatusOf(nested) != http.StatusConflict {
		t.Fatalf("unexpected status %d", StatusOf(nested))
	}
	if StatusOf(nil) != http.StatusOK {
		t.Fatal("nil error should map to 200")
	}
}

func TestRegisterOverridesAttributes(t *testing.T) {
	const code Code = "TEST_ONLY"
	Register(code, Attributes{Message: "test only", Severity: SeverityWarning, HTTPStatus: http.StatusTeapot})

	err := New(code, "", WithMetadata("k", "v"))
	if err.Message() != "test only" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if err.HTTPStatus() != http.StatusTeapot {
		t.Fatalf("unexpected status %d", err.HTTPStatus())
	}
	if err.Severity() != SeverityWarning {
		t.Fatalf("unexpected severity %s", err.Severity())
	}
	if err.Metadata()["k"] != "v" {
		t.Fatalf("unexpected metadata %+v", err.Metadata())
	}

	overridden := New(code, "", WithSeverity(SeverityCritical))
	if overridden.Severity() != SeverityCritical {
		t.Fatalf("expected severity override, got %s", overridden.Severity())
	}
}

func TestCanceledIsItsOwnCode(t *testing.T) {
	err := Wrap(CodeCanceled, context.DeadlineExceeded, "")
	if !stdErrors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected cause to be preserved")
	}
	if stdErrors.Is(err, New(CodeChainFailure, "")) {
		t.Fatal("cancellation must not match CHAIN_FAILURE")
	}
	if StatusOf(err) != http.StatusRequestTimeout {
		t.Fatalf("unexpected status %d", StatusOf(err))
	}
	if SeverityOf(err) != SeverityInfo {
		t.Fatalf("unexpected severity %v", SeverityOf(err))
	}
}
