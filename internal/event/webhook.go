package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// WebhookPublisher entrega eventos via POST JSON para um endpoint configurado.
type WebhookPublisher struct {
	endpoint string
	client   *http.Client
}

// NewWebhookPublisher cria o publicador; endpoint vazio devolve nil.
func NewWebhookPublisher(endpoint string) *WebhookPublisher {
	if endpoint == "" {
		return nil
	}
	return &WebhookPublisher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Publish envia o evento serializado.
func (p *WebhookPublisher) Publish(ctx context.Context, evt Event) error {
	if p == nil || p.endpoint == "" {
		return errors.New("event: webhook não configurado")
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("event: webhook respondeu %d", resp.StatusCode)
	}
	return nil
}

// NoopPublisher descarta eventos quando não há destino configurado.
type NoopPublisher struct{}

// Publish sempre aceita o evento sem efeito.
func (NoopPublisher) Publish(ctx context.Context, evt Event) error {
	return nil
}
