package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testMessage() Message {
	return Message{
		RecipientEmail: "ann@example.com",
		RecipientName:  "Ann",
		Amount:         decimal.RequireFromString("100"),
		PlanName:       "3-Day Plan",
		NewBalance:     decimal.RequireFromString("1100"),
	}
}

func TestMailjetSend_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v3.1/send" {
			t.Fatalf("path = %s, want /v3.1/send", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Fatalf("basic auth = %q/%q, want key/secret", user, pass)
		}

		var req mailjetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Messages) != 1 {
			t.Fatalf("messages = %d, want 1", len(req.Messages))
		}
		m := req.Messages[0]
		if m.From.Email != "noreply@example.com" {
			t.Fatalf("from = %q, want noreply@example.com", m.From.Email)
		}
		if len(m.To) != 1 || m.To[0].Email != "ann@example.com" {
			t.Fatalf("unexpected recipients: %+v", m.To)
		}
		if !strings.Contains(m.Subject, "100.00") {
			t.Fatalf("subject %q does not contain amount", m.Subject)
		}
		if !strings.Contains(m.HTMLPart, "1100.00") {
			t.Fatalf("html part %q does not contain new balance", m.HTMLPart)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Messages":[{"Status":"success"}]}`))
	}))
	defer ts.Close()

	client := NewMailjetClient(ts.URL, "key", "secret", "noreply@example.com", "ROI Desk")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Send(ctx, testMessage()); err != nil {
		t.Fatalf("Send error: %v", err)
	}
}

func TestMailjetSend_CompletedSubject(t *testing.T) {
	var subject string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mailjetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		subject = req.Messages[0].Subject
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewMailjetClient(ts.URL, "key", "secret", "noreply@example.com", "")

	msg := testMessage()
	msg.Completed = true
	msg.Bonus = decimal.RequireFromString("50")

	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !strings.Contains(subject, "completed") {
		t.Fatalf("subject = %q, want completion subject", subject)
	}
}

func TestMailjetSend_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ErrorMessage":"API key authentication/authorization failure"}`))
	}))
	defer ts.Close()

	client := NewMailjetClient(ts.URL, "key", "bad", "noreply@example.com", "")

	err := client.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatalf("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("error %q does not mention status", err)
	}
}

func TestMailjetSend_NotConfigured(t *testing.T) {
	client := NewMailjetClient("", "", "", "", "")

	if err := client.Send(context.Background(), testMessage()); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}
