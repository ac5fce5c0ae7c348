package twofactor

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/identidade/internal/event"
	"github.com/gestaozabele/identidade/internal/repo"
)

type userStore interface {
	SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool, provider repo.TwoFactorProvider, totpSecret *string) error
}

// Service orquestra envio e validação do segundo fator.
type Service struct {
	registry   *Registry
	codes      *CodeCache
	users      userStore
	events     event.Publisher
	issuer     string
	codeLength int
}

// NewService cria o serviço de segundo fator.
func NewService(registry *Registry, codes *CodeCache, users userStore, events event.Publisher, issuer string, codeLength int) *Service {
	if codeLength <= 0 {
		codeLength = 6
	}
	return &Service{
		registry:   registry,
		codes:      codes,
		users:      users,
		events:     events,
		issuer:     issuer,
		codeLength: codeLength,
	}
}

// ResolveProvider escolhe o provedor efetivo e valida o destino de entrega
// antes de qualquer envio. Falha cedo quando o canal não é utilizável.
func (s *Service) ResolveProvider(user *repo.User, override repo.TwoFactorProvider) (repo.TwoFactorProvider, string, error) {
	provider := override
	if provider == repo.ProviderNone {
		provider = user.TwoFactorProvider
	}

	switch provider {
	case repo.ProviderSms, repo.ProviderWhatsApp:
		if user.PhoneNumber == nil || strings.TrimSpace(*user.PhoneNumber) == "" {
			return repo.ProviderNone, "", ErrNoProviderConfigured
		}
		return provider, *user.PhoneNumber, nil
	case repo.ProviderEmail:
		if strings.TrimSpace(user.Email) == "" {
			return repo.ProviderNone, "", ErrNoProviderConfigured
		}
		return provider, user.Email, nil
	case repo.ProviderAuthenticatorApp:
		if user.TotpSecret == nil || *user.TotpSecret == "" {
			return repo.ProviderNone, "", ErrNoProviderConfigured
		}
		return provider, "", nil
	default:
		return repo.ProviderNone, "", ErrNoProviderConfigured
	}
}

// SendOtp gera e entrega um código pelo canal do usuário. Para o provedor
// AUTHENTICATOR não há envio: o código vem do aplicativo.
func (s *Service) SendOtp(ctx context.Context, user *repo.User, override repo.TwoFactorProvider) (repo.TwoFactorProvider, error) {
	provider, destination, err := s.ResolveProvider(user, override)
	if err != nil {
		return repo.ProviderNone, err
	}

	if provider == repo.ProviderAuthenticatorApp {
		return provider, nil
	}

	code, err := GenerateCode(s.codeLength)
	if err != nil {
		return repo.ProviderNone, err
	}
	if err := s.codes.Store(ctx, user.ID, code); err != nil {
		return repo.ProviderNone, err
	}

	sender, err := s.registry.Sender(provider)
	if err != nil {
		return repo.ProviderNone, err
	}
	if err := sender.Send(ctx, destination, code); err != nil {
		return repo.ProviderNone, err
	}

	log.Info().Str("provider", string(provider)).Msg("2fa: código enviado")
	return provider, nil
}

// VerifyCode valida código de uso único contra o canal que de fato o
// entregou: quando o login usa override, o provedor efetivo prevalece sobre
// o salvo no cadastro. TOTP usa janela rolante do aplicativo; os demais
// provedores comparam com o código em cache.
func (s *Service) VerifyCode(ctx context.Context, user *repo.User, provider repo.TwoFactorProvider, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}

	if provider == repo.ProviderNone {
		provider = user.TwoFactorProvider
	}

	if provider == repo.ProviderAuthenticatorApp {
		if user.TotpSecret == nil || *user.TotpSecret == "" {
			return false, nil
		}
		return totp.Validate(code, *user.TotpSecret), nil
	}

	return s.codes.Consume(ctx, user.ID, code)
}

// EnableResult carrega o material devolvido ao habilitar o segundo fator.
type EnableResult struct {
	Provider repo.TwoFactorProvider
	// OtpauthURL é preenchido apenas para AUTHENTICATOR (QR de provisionamento).
	OtpauthURL string
}

// Enable ativa o segundo fator no provedor informado e publica o evento de
// domínio para manter read models consistentes.
func (s *Service) Enable(ctx context.Context, user *repo.User, provider repo.TwoFactorProvider) (*EnableResult, error) {
	result := &EnableResult{Provider: provider}
	var totpSecret *string

	switch provider {
	case repo.ProviderSms, repo.ProviderWhatsApp:
		if user.PhoneNumber == nil || strings.TrimSpace(*user.PhoneNumber) == "" {
			return nil, ErrNoProviderConfigured
		}
	case repo.ProviderEmail:
		if strings.TrimSpace(user.Email) == "" {
			return nil, ErrNoProviderConfigured
		}
	case repo.ProviderAuthenticatorApp:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.issuer,
			AccountName: user.Email,
		})
		if err != nil {
			return nil, err
		}
		secret := key.Secret()
		totpSecret = &secret
		result.OtpauthURL = key.URL()
	default:
		return nil, ErrNoProviderConfigured
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, true, provider, totpSecret); err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, event.New(event.TypeTwoFactorEnabled, map[string]any{
		"user_id":  user.ID.String(),
		"provider": string(provider),
	})); err != nil {
		log.Warn().Err(err).Msg("2fa: publicação de evento falhou")
	}

	return result, nil
}

// Disable desliga o segundo fator e limpa o segredo TOTP.
func (s *Service) Disable(ctx context.Context, user *repo.User) error {
	if err := s.users.SetTwoFactor(ctx, user.ID, false, repo.ProviderNone, nil); err != nil {
		return err
	}

	if err := s.events.Publish(ctx, event.New(event.TypeTwoFactorDisabled, map[string]any{
		"user_id": user.ID.String(),
	})); err != nil {
		log.Warn().Err(err).Msg("2fa: publicação de evento falhou")
	}
	return nil
}

// IsNoProvider facilita o mapeamento de erro nas camadas superiores.
func IsNoProvider(err error) bool {
	return errors.Is(err, ErrNoProviderConfigured)
}
