// Package principal resolve a identidade do chamador para uma requisição.
package principal

import (
	"github.com/google/uuid"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/repo"
)

// Info é o contexto de segurança do chamador, imutável após a extração.
type Info struct {
	UserID        uuid.UUID
	TeamID        uuid.UUID
	TeamPosition  int
	Email         string
	Username      string
	Authenticated bool
	TeamType      repo.TeamType
	Leader        bool
	// TwoFactorVerified reflete a claim do token da sessão corrente.
	TwoFactorVerified bool
}

// IsSuperMinimum indica equipe super.
func (i Info) IsSuperMinimum() bool {
	return i.Authenticated && i.TeamType == repo.TeamSuper
}

// IsMntcMinimum indica equipe de manutenção ou acima.
func (i Info) IsMntcMinimum() bool {
	return i.Authenticated && (i.TeamType == repo.TeamSuper || i.TeamType == repo.TeamMaintenance)
}

// IsCustomerMinimum vale para qualquer chamador autenticado.
func (i Info) IsCustomerMinimum() bool {
	return i.Authenticated
}

// Extract converte claims validadas em Info. Claims opcionais ausentes viram
// valor zero; nunca falha. A validade da assinatura é responsabilidade do
// chamador (middleware de autenticação): claims nulas produzem principal
// anônimo.
func Extract(claims *auth.Claims) Info {
	if claims == nil {
		return Info{}
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Info{}
	}

	info := Info{
		UserID:            subject,
		TeamPosition:      claims.TeamPosition,
		Email:             claims.Email,
		Username:          claims.Username,
		Authenticated:     true,
		TeamType:          repo.TeamType(claims.TeamType),
		Leader:            claims.Leader,
		TwoFactorVerified: claims.TwoFactorVerified,
	}

	if teamID, err := uuid.Parse(claims.TeamID); err == nil {
		info.TeamID = teamID
	}

	return info
}
