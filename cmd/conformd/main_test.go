package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medalign-labs/conformance/pkg/auth"
)

func TestRun_Help(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"conformd", "help"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), "USAGE") {
		t.Errorf("usage output missing USAGE section: %q", out.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"conformd", "frobnicate"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "Unknown command") {
		t.Errorf("expected unknown command error, got %q", errOut.String())
	}
}

func TestRun_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"conformd", "version"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), Version) {
		t.Errorf("version output missing %q: %q", Version, out.String())
	}
}

func TestRun_DefaultStartsServer(t *testing.T) {
	called := false
	orig := startServer
	startServer = func() { called = true }
	defer func() { startServer = orig }()

	var out, errOut bytes.Buffer
	if code := Run([]string{"conformd"}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !called {
		t.Error("expected server start on bare invocation")
	}
}

func TestRun_Standards(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"conformd", "standards"}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "HIPAA") {
		t.Errorf("standards output missing HIPAA: %q", out.String())
	}
}

func TestWrapAuth_NoValidatorPassesThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := wrapAuth(inner, nil)
	req := httptest.NewRequest("GET", "/requirements", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected open access without a signing key, got %d", w.Code)
	}
}

func TestWrapAuth_ValidatorRejectsMissingToken(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := wrapAuth(inner, auth.NewJWTValidator("test-secret"))
	req := httptest.NewRequest("GET", "/requirements", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", w.Code)
	}
}
