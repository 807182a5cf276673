package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/refertrack/refertrack/internal/handler/dto"
)

func TestHandler_Hello(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Hello(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Message string `json:"message"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message == "" || body.Version != Version {
		t.Errorf("body = %+v, want a message and version %s", body, Version)
	}
}

func TestHandler_ErrorResponses(t *testing.T) {
	h := New()

	tests := []struct {
		name     string
		serve    http.HandlerFunc
		method   string
		wantCode int
		wantErr  dto.ErrorResponse
	}{
		{
			name:     "unknown route",
			serve:    h.NotFound,
			method:   http.MethodGet,
			wantCode: http.StatusNotFound,
			wantErr:  dto.ErrorResponse{Code: "NOT_FOUND", Error: "resource not found"},
		},
		{
			name:     "wrong method",
			serve:    h.MethodNotAllowed,
			method:   http.MethodDelete,
			wantCode: http.StatusMethodNotAllowed,
			wantErr:  dto.ErrorResponse{Code: "METHOD_NOT_ALLOWED", Error: "method not allowed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.serve(rec, httptest.NewRequest(tt.method, "/api/referral/missing", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var got dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Code != tt.wantErr.Code {
				t.Errorf("code = %q, want %q", got.Code, tt.wantErr.Code)
			}
			if got.Error != tt.wantErr.Error {
				t.Errorf("error = %q, want %q", got.Error, tt.wantErr.Error)
			}
			if len(got.Errors) != 0 {
				t.Errorf("unexpected field errors: %+v", got.Errors)
			}
		})
	}
}
