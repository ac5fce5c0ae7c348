// Package event publica eventos de domínio para consumidores externos.
package event

import (
	"context"
	"time"
)

// Tipos de evento emitidos pelo núcleo de identidade.
const (
	TypeEmailConfirmationRequested = "identity.email_confirmation_requested"
	TypeEmailConfirmed             = "identity.email_confirmed"
	TypeTwoFactorEnabled           = "identity.two_factor_enabled"
	TypeTwoFactorDisabled          = "identity.two_factor_disabled"
	TypeRefreshReuseDetected       = "identity.refresh_reuse_detected"
	TypeMemberAdded                = "team.member_added"
	TypeMemberRemoved              = "team.member_removed"
	TypeLeaderChanged              = "team.leader_changed"
	TypeAccountClosed              = "identity.account_closed"
)

// Event é a mensagem publicada.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New monta evento com instante corrente.
func New(eventType string, payload map[string]any) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher define a capacidade de publicação consumida pelos serviços.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}
