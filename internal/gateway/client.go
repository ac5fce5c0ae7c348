// Package gateway encapsula chamadas ao provedor de mensageria usado na
// entrega de códigos OTP (SMS, WhatsApp e e-mail).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.mensageria.urbanbyte.com.br/v1"

// Client encapsula chamadas à API do provedor de mensageria.
type Client struct {
	httpClient *http.Client
	apiToken   string
	baseURL    string
	sender     string
}

// Config descreve credenciais essenciais para o cliente.
type Config struct {
	APIToken string
	APIBase  string
	// Sender é o remetente padrão (número ou endereço) registrado no provedor.
	Sender string
}

// New cria um novo cliente utilizando API Token.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("gateway: api token obrigatório")
	}

	apiBase := strings.TrimSpace(cfg.APIBase)
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiToken:   cfg.APIToken,
		baseURL:    strings.TrimRight(apiBase, "/"),
		sender:     strings.TrimSpace(cfg.Sender),
	}, nil
}

// SendSMS entrega mensagem de texto para o telefone informado.
func (c *Client) SendSMS(ctx context.Context, phone, message string) error {
	return c.post(ctx, "/messages/sms", map[string]any{
		"from": c.sender,
		"to":   strings.TrimSpace(phone),
		"body": message,
	})
}

// SendWhatsApp entrega mensagem via WhatsApp Business.
func (c *Client) SendWhatsApp(ctx context.Context, phone, message string) error {
	return c.post(ctx, "/messages/whatsapp", map[string]any{
		"from": c.sender,
		"to":   strings.TrimSpace(phone),
		"body": message,
	})
}

// SendEmail entrega e-mail transacional simples.
func (c *Client) SendEmail(ctx context.Context, address, subject, body string) error {
	return c.post(ctx, "/messages/email", map[string]any{
		"to":      strings.ToLower(strings.TrimSpace(address)),
		"subject": subject,
		"body":    body,
	})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: envio falhou com status %d", resp.StatusCode)
	}
	return nil
}
