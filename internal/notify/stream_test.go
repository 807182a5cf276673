package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestDecodeInvitation(t *testing.T) {
	tests := []struct {
		name       string
		values     map[string]interface{}
		wantReason string
		wantEmail  string
	}{
		{
			name:      "valid",
			values:    map[string]interface{}{"payload": `{"e":"bob@example.com","rn":"Bob","fn":"Alice","u":"u1"}`},
			wantEmail: "bob@example.com",
		},
		{
			name:       "missing payload",
			values:     map[string]interface{}{},
			wantReason: "invalid_format",
		},
		{
			name:       "not a string",
			values:     map[string]interface{}{"payload": 42},
			wantReason: "invalid_format",
		},
		{
			name:       "bad json",
			values:     map[string]interface{}{"payload": "{"},
			wantReason: "unmarshal_error",
		},
		{
			name:       "missing user",
			values:     map[string]interface{}{"payload": `{"e":"bob@example.com"}`},
			wantReason: "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, reason, err := DecodeInvitation(tt.values)
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
			if (err != nil) != (tt.wantReason != "") {
				t.Errorf("err = %v", err)
			}
			if inv.RefereeEmail != tt.wantEmail {
				t.Errorf("RefereeEmail = %q, want %q", inv.RefereeEmail, tt.wantEmail)
			}
		})
	}
}

func TestNewConsumerID(t *testing.T) {
	a := NewConsumerID()
	b := NewConsumerID()
	if a == "" || a == b {
		t.Errorf("consumer IDs should be non-empty and distinct: %q %q", a, b)
	}
	if strings.Count(a, "-") < 2 {
		t.Errorf("unexpected consumer id format %q", a)
	}
}

// unreachableWorker points at a port nothing listens on.
func unreachableWorker(t *testing.T) *Worker {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	w := NewWorker(client, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), "test", nil)
	w.SetBlockTimeout(50 * time.Millisecond)
	return w
}

func TestWorker_ProcessOnceReportsReadErrors(t *testing.T) {
	w := unreachableWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := w.processOnce(ctx)
	if err == nil {
		t.Fatal("expected an error from an unreachable redis")
	}
	if !strings.Contains(err.Error(), "xreadgroup") {
		t.Errorf("error = %v, want xreadgroup context", err)
	}
}

func TestWorker_ShutdownBeforeRun(t *testing.T) {
	w := unreachableWorker(t)

	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	result := make(chan error, 1)
	go func() { result <- w.Run(context.Background()) }()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept going after Shutdown")
	}
}
