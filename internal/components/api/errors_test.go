package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/workledger/workledger-go/internal/components/api"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorEnvelope {
	t.Helper()
	var envelope api.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not a valid error envelope: %v (body: %s)", err, rec.Body.String())
	}
	return envelope
}

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, http.StatusForbidden, api.ReasonForbiddenOperation, "deletions are not accepted")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	envelope := decode(t, rec)
	if envelope.Error.Code != "Forbidden" {
		t.Errorf("code should be the HTTP status text, got %q", envelope.Error.Code)
	}
	if envelope.Error.ReasonCode != api.ReasonForbiddenOperation {
		t.Errorf("expected forbidden_operation, got %q", envelope.Error.ReasonCode)
	}
	if envelope.Error.Message != "deletions are not accepted" {
		t.Errorf("message lost: %q", envelope.Error.Message)
	}
}

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		reason string
	}{
		{"unauthorized", func(w http.ResponseWriter) {
			api.WriteUnauthorized(w, api.ReasonTokenExpired, "m")
		}, http.StatusUnauthorized, api.ReasonTokenExpired},
		{"forbidden", func(w http.ResponseWriter) {
			api.WriteForbidden(w, api.ReasonWrongScope, "m")
		}, http.StatusForbidden, api.ReasonWrongScope},
		{"not found", func(w http.ResponseWriter) {
			api.WriteNotFound(w, "m")
		}, http.StatusNotFound, api.ReasonNotFound},
		{"bad request", func(w http.ResponseWriter) {
			api.WriteBadRequest(w, api.ReasonMissingField, "m")
		}, http.StatusBadRequest, api.ReasonMissingField},
		{"unprocessable", func(w http.ResponseWriter) {
			api.WriteUnprocessable(w, api.ReasonUnknownOperation, "m")
		}, http.StatusUnprocessableEntity, api.ReasonUnknownOperation},
		{"conflict", func(w http.ResponseWriter) {
			api.WriteConflict(w, "m")
		}, http.StatusConflict, api.ReasonConflict},
		{"rate limited", func(w http.ResponseWriter) {
			api.WriteTooManyRequests(w, "m")
		}, http.StatusTooManyRequests, api.ReasonRateLimited},
		{"internal", func(w http.ResponseWriter) {
			api.WriteInternalError(w, "m")
		}, http.StatusInternalServerError, api.ReasonInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if envelope := decode(t, rec); envelope.Error.ReasonCode != tc.reason {
				t.Errorf("expected reason %q, got %q", tc.reason, envelope.Error.ReasonCode)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteJSON(rec, http.StatusCreated, map[string]string{"id": "inv-1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["id"] != "inv-1" {
		t.Errorf("body lost: %v", body)
	}
}
