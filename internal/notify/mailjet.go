// Package notify отправляет пользователям письма о начислении доходности.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMailjetURL адрес API Mailjet по умолчанию.
const DefaultMailjetURL = "https://api.mailjet.com"

// Message описывает письмо о начислении.
type Message struct {
	RecipientEmail string
	RecipientName  string
	Amount         decimal.Decimal
	Bonus          decimal.Decimal
	PlanName       string
	NewBalance     decimal.Decimal
	Completed      bool
}

// Sender отправляет письмо о начислении.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NopSender ничего не отправляет. Используется, когда рассылка выключена.
type NopSender struct{}

func (NopSender) Send(context.Context, Message) error { return nil }

// MailjetClient инкапсулирует HTTP-взаимодействие с Mailjet Send API v3.1.
type MailjetClient struct {
	baseURL    string
	apiKey     string
	secretKey  string
	fromEmail  string
	fromName   string
	httpClient *http.Client
}

// NewMailjetClient создаёт клиент Mailjet. Пустой baseURL означает DefaultMailjetURL.
func NewMailjetClient(baseURL, apiKey, secretKey, fromEmail, fromName string) *MailjetClient {
	if baseURL == "" {
		baseURL = DefaultMailjetURL
	}
	return &MailjetClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type mailjetAddress struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type mailjetMessage struct {
	From     mailjetAddress   `json:"From"`
	To       []mailjetAddress `json:"To"`
	Subject  string           `json:"Subject"`
	TextPart string           `json:"TextPart"`
	HTMLPart string           `json:"HTMLPart"`
}

type mailjetRequest struct {
	Messages []mailjetMessage `json:"Messages"`
}

// Send отправляет письмо через POST /v3.1/send.
func (c *MailjetClient) Send(ctx context.Context, msg Message) error {
	if c == nil || c.apiKey == "" || c.secretKey == "" {
		return fmt.Errorf("mailjet client not configured")
	}
	if msg.RecipientEmail == "" {
		return fmt.Errorf("empty recipient email")
	}

	body, err := json.Marshal(mailjetRequest{
		Messages: []mailjetMessage{c.buildMessage(msg)},
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3.1/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status: %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return nil
}

func (c *MailjetClient) buildMessage(msg Message) mailjetMessage {
	name := msg.RecipientName
	if name == "" {
		name = "Investor"
	}

	subject := fmt.Sprintf("Daily ROI credited: $%s", msg.Amount.StringFixed(2))
	text := fmt.Sprintf(
		"Hello %s, $%s from your %s has been credited. New balance: $%s.",
		name, msg.Amount.StringFixed(2), msg.PlanName, msg.NewBalance.StringFixed(2),
	)
	if msg.Completed {
		subject = fmt.Sprintf("Investment completed: %s", msg.PlanName)
		text = fmt.Sprintf(
			"Hello %s, your %s has completed. Final return $%s and bonus $%s have been credited. New balance: $%s.",
			name, msg.PlanName, msg.Amount.StringFixed(2), msg.Bonus.StringFixed(2), msg.NewBalance.StringFixed(2),
		)
	}

	return mailjetMessage{
		From:     mailjetAddress{Email: c.fromEmail, Name: c.fromName},
		To:       []mailjetAddress{{Email: msg.RecipientEmail, Name: msg.RecipientName}},
		Subject:  subject,
		TextPart: text,
		HTMLPart: "<p>" + html.EscapeString(text) + "</p>",
	}
}
