// Package twofactor implementa geração, entrega e validação do segundo fator.
package twofactor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gestaozabele/identidade/internal/gateway"
	"github.com/gestaozabele/identidade/internal/repo"
)

var (
	// ErrNoProviderConfigured indica que nenhum canal utilizável está
	// configurado para o usuário (ex.: SMS sem telefone cadastrado).
	ErrNoProviderConfigured = errors.New("nenhum provedor de segundo fator configurado")
	// ErrUnknownProvider indica provedor não registrado.
	ErrUnknownProvider = errors.New("provedor de segundo fator desconhecido")
)

// Sender entrega um código pelo canal do provedor.
type Sender interface {
	Send(ctx context.Context, destination, code string) error
}

// Registry mapeia provedores para seus canais de entrega. AUTHENTICATOR não
// tem sender: a validação TOTP é local.
type Registry struct {
	senders map[repo.TwoFactorProvider]Sender
}

// NewRegistry cria registro vazio.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[repo.TwoFactorProvider]Sender)}
}

// Register associa um sender ao provedor.
func (r *Registry) Register(provider repo.TwoFactorProvider, sender Sender) {
	r.senders[provider] = sender
}

// Sender devolve o canal do provedor.
func (r *Registry) Sender(provider repo.TwoFactorProvider) (Sender, error) {
	sender, ok := r.senders[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return sender, nil
}

// SMSSender entrega códigos via SMS pelo gateway de mensageria.
type SMSSender struct {
	Client *gateway.Client
}

func (s SMSSender) Send(ctx context.Context, destination, code string) error {
	return s.Client.SendSMS(ctx, destination, otpMessage(code))
}

// WhatsAppSender entrega códigos via WhatsApp.
type WhatsAppSender struct {
	Client *gateway.Client
}

func (s WhatsAppSender) Send(ctx context.Context, destination, code string) error {
	return s.Client.SendWhatsApp(ctx, destination, otpMessage(code))
}

// EmailSender entrega códigos via e-mail transacional.
type EmailSender struct {
	Client *gateway.Client
}

func (s EmailSender) Send(ctx context.Context, destination, code string) error {
	return s.Client.SendEmail(ctx, destination, "Código de verificação", otpMessage(code))
}

func otpMessage(code string) string {
	return fmt.Sprintf("Seu código de verificação é %s. Ele expira em poucos minutos.", code)
}
