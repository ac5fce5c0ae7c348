// Package permission concentra as decisões de autorização hierárquica.
// Todas as funções são puras e toda negação devolve o mesmo ErrForbidden,
// sem revelar qual regra falhou.
package permission

import (
	"errors"

	"github.com/google/uuid"

	"github.com/gestaozabele/identidade/internal/principal"
	"github.com/gestaozabele/identidade/internal/repo"
)

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
)

// CanAddMember autoriza inclusão de membro na equipe alvo. O ator precisa ser
// ao menos manutenção (ou cliente, quando a equipe alvo é de cliente), a nova
// posição precisa ser estritamente inferior à do ator e caber na faixa da
// equipe.
func CanAddMember(actor principal.Info, team *repo.Team, newPosition int) error {
	if team == nil {
		return ErrForbidden
	}

	allowed := actor.IsMntcMinimum()
	if team.Type == repo.TeamCustomer {
		allowed = actor.IsCustomerMinimum()
	}
	if !allowed {
		return ErrForbidden
	}

	if newPosition >= actor.TeamPosition {
		return ErrForbidden
	}
	if newPosition < team.MinPosition || newPosition > team.MaxPosition {
		return ErrForbidden
	}
	return nil
}

// CanDeleteMember autoriza remoção administrativa. Auto-remoção usa o fluxo
// próprio de encerramento de conta e é negada aqui.
func CanDeleteMember(actor principal.Info, target *repo.User) error {
	if target == nil || !actor.Authenticated {
		return ErrForbidden
	}
	if target.ID == actor.UserID {
		return ErrForbidden
	}
	if actor.IsSuperMinimum() {
		return nil
	}
	if target.Position < actor.TeamPosition {
		return nil
	}
	return ErrForbidden
}

// CanUpdateMember exige posição estritamente inferior, ou o próprio cadastro.
func CanUpdateMember(actor principal.Info, target *repo.User) error {
	if target == nil || !actor.Authenticated {
		return ErrForbidden
	}
	if target.ID == actor.UserID {
		return nil
	}
	if target.TeamID == actor.TeamID && target.Position < actor.TeamPosition {
		return nil
	}
	if actor.IsSuperMinimum() {
		return nil
	}
	return ErrForbidden
}

// CanViewMember é mais permissivo que atualização: mesma equipe com posição
// igual ou inferior, além do próprio cadastro.
func CanViewMember(actor principal.Info, target *repo.User) error {
	if target == nil || !actor.Authenticated {
		return ErrForbidden
	}
	if target.ID == actor.UserID {
		return nil
	}
	if target.TeamID == actor.TeamID && target.Position <= actor.TeamPosition {
		return nil
	}
	if actor.IsSuperMinimum() {
		return nil
	}
	return ErrForbidden
}

// CanChangeLeader permite troca de liderança apenas ao líder atual ou a um
// super; o candidato precisa já ser membro da equipe.
func CanChangeLeader(actor principal.Info, team *repo.Team, newLeaderID uuid.UUID) error {
	if team == nil || !actor.Authenticated {
		return ErrForbidden
	}

	isLeader := team.LeaderID != nil && *team.LeaderID == actor.UserID
	if !isLeader && !actor.IsSuperMinimum() {
		return ErrForbidden
	}
	if !team.HasMember(newLeaderID) {
		return ErrForbidden
	}
	return nil
}

// CanChangePosition exige que o ator supere a posição atual e a pretendida do
// alvo, e que a nova posição caiba na faixa da equipe.
func CanChangePosition(actor principal.Info, team *repo.Team, target *repo.User, newPosition int) error {
	if team == nil || target == nil || !actor.Authenticated {
		return ErrForbidden
	}
	if target.Position >= actor.TeamPosition || newPosition >= actor.TeamPosition {
		return ErrForbidden
	}
	if newPosition < team.MinPosition || newPosition > team.MaxPosition {
		return ErrForbidden
	}
	return nil
}
