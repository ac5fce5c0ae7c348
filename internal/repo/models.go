package repo

import (
	"time"

	"github.com/google/uuid"
)

// TeamType classifica o tipo de equipe dentro da hierarquia.
type TeamType string

const (
	// TeamCustomer representa equipes de clientes (multi-instância).
	TeamCustomer TeamType = "CUSTOMER"
	// TeamMaintenance representa a equipe de manutenção (singleton).
	TeamMaintenance TeamType = "MAINTENANCE"
	// TeamSuper representa a equipe super-administradora (singleton).
	TeamSuper TeamType = "SUPER"
)

// TwoFactorProvider identifica o canal do segundo fator.
type TwoFactorProvider string

const (
	ProviderNone             TwoFactorProvider = ""
	ProviderSms              TwoFactorProvider = "SMS"
	ProviderEmail            TwoFactorProvider = "EMAIL"
	ProviderWhatsApp         TwoFactorProvider = "WHATSAPP"
	ProviderAuthenticatorApp TwoFactorProvider = "AUTHENTICATOR"
)

// Team representa uma equipe com faixa de posições configurada.
type Team struct {
	ID          uuid.UUID
	Name        string
	Type        TeamType
	MinPosition int
	MaxPosition int
	// Capacity limita membros em equipes de cliente. Zero = sem limite.
	Capacity  int
	LeaderID  *uuid.UUID
	CreatedAt time.Time
	// Members é preenchido apenas por GetTeamWithMembers.
	Members []User
}

// HasMember verifica se o usuário pertence à equipe carregada.
func (t *Team) HasMember(userID uuid.UUID) bool {
	for _, m := range t.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// User representa um membro de equipe.
type User struct {
	ID     uuid.UUID
	TeamID uuid.UUID
	Name   string
	// Username é opcional; login também aceita e-mail.
	Username          string
	Email             string
	PhoneNumber       *string
	PasswordHash      *string
	Position          int
	EmailConfirmed    bool
	PhoneConfirmed    bool
	TwoFactorEnabled  bool
	TwoFactorProvider TwoFactorProvider
	// TotpSecret é preenchido apenas quando o provedor é AUTHENTICATOR.
	TotpSecret *string
	CreatedAt  time.Time
}

// RefreshToken modela a tabela de refresh tokens (armazenados por hash).
type RefreshToken struct {
	ID     uuid.UUID
	UserID uuid.UUID
	// FamilyID agrupa toda a cadeia de rotações de uma mesma sessão.
	FamilyID          uuid.UUID
	TokenHash         string
	DeviceID          *string
	TwoFactorVerified bool
	ExpiresAt         time.Time
	CreatedAt         time.Time
	Revoked           bool
}

// IsExpired indica expiração relativa ao instante informado.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
