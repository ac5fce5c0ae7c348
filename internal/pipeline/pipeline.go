package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/identidade/internal/principal"
	"github.com/gestaozabele/identidade/internal/repo"
)

// AuthContext agrega o que a cadeia popula antes do handler: o principal é
// sempre presente; usuário e equipe apenas quando a requisição os declara.
type AuthContext struct {
	Principal principal.Info
	User      *repo.User
	Team      *repo.Team
}

// Marcadores de capacidade. Uma requisição declara o que exige implementando
// o marcador correspondente; a cadeia preenche o AuthContext antes do handler.
type (
	// RequiresAuth exige principal autenticado.
	RequiresAuth interface{ RequiresAuth() }
	// RequiresUser exige o usuário completo carregado.
	RequiresUser interface{ RequiresUser() }
	// RequiresTeam exige a equipe completa (com membros) carregada.
	RequiresTeam interface{ RequiresTeam() }
	// Mutates marca comandos que rodam dentro de transação.
	Mutates interface{ Mutates() }
	// Validated declara a árvore de regras avaliada antes do handler.
	Validated interface{ Rule() Rule }
)

// Rule é um predicado sobre o AuthContext já populado.
type Rule func(actx *AuthContext) bool

// All combina regras com E lógico.
func All(rules ...Rule) Rule {
	return func(actx *AuthContext) bool {
		for _, rule := range rules {
			if !rule(actx) {
				return false
			}
		}
		return true
	}
}

// Any combina regras com OU lógico.
func Any(rules ...Rule) Rule {
	return func(actx *AuthContext) bool {
		for _, rule := range rules {
			if rule(actx) {
				return true
			}
		}
		return false
	}
}

// Authenticated exige principal autenticado.
func Authenticated() Rule {
	return func(actx *AuthContext) bool {
		return actx.Principal.Authenticated
	}
}

// MntcMinimum exige manutenção ou acima.
func MntcMinimum() Rule {
	return func(actx *AuthContext) bool {
		return actx.Principal.IsMntcMinimum()
	}
}

// SuperMinimum exige equipe super.
func SuperMinimum() Rule {
	return func(actx *AuthContext) bool {
		return actx.Principal.IsSuperMinimum()
	}
}

// PositionAtLeast exige posição mínima do ator.
func PositionAtLeast(position int) Rule {
	return func(actx *AuthContext) bool {
		return actx.Principal.TeamPosition >= position
	}
}

// TeamLeader exige que o ator lidere a equipe carregada.
func TeamLeader() Rule {
	return func(actx *AuthContext) bool {
		return actx.Team != nil && actx.Team.LeaderID != nil &&
			*actx.Team.LeaderID == actx.Principal.UserID
	}
}

// Loader carrega usuário e equipe para os estágios 2 e 3.
type Loader interface {
	FindUserWithTeamDetails(ctx context.Context, id uuid.UUID) (repo.User, error)
	GetTeamWithMembers(ctx context.Context, id uuid.UUID) (repo.Team, error)
}

// TxRunner delimita a transação do estágio final. A implementação deve
// garantir rollback em erro e em cancelamento de contexto.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pipeline liga os colaboradores aos estágios.
type Pipeline struct {
	loader Loader
	tx     TxRunner
}

// New cria a cadeia com os colaboradores informados.
func New(loader Loader, tx TxRunner) *Pipeline {
	return &Pipeline{loader: loader, tx: tx}
}

// errShortCircuit sinaliza falha de negócio dentro da transação: o rollback
// acontece, mas o Result original é preservado.
var errShortCircuit = errors.New("pipeline: resultado de falha")

// Handler processa a requisição após todos os estágios.
type Handler[Req any, T any] func(ctx context.Context, actx *AuthContext, req Req) Result[T]

// Execute aplica os estágios em ordem fixa. Qualquer falha interrompe a
// cadeia: nenhum estágio posterior nem o handler executam.
func Execute[Req any, T any](ctx context.Context, p *Pipeline, prin principal.Info, req Req, handler Handler[Req, T]) Result[T] {
	actx := &AuthContext{Principal: prin}

	// Estágio 1: principal.
	if _, ok := any(req).(RequiresAuth); ok && !prin.Authenticated {
		return Unauthorized[T]()
	}

	// Estágio 2: carga do usuário.
	if _, ok := any(req).(RequiresUser); ok {
		user, err := p.loader.FindUserWithTeamDetails(ctx, prin.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NotFound[T]()
			}
			log.Error().Err(err).Msg("pipeline: carga de usuário falhou")
			return Internal[T]()
		}
		actx.User = &user
	}

	// Estágio 3: carga da equipe.
	if _, ok := any(req).(RequiresTeam); ok {
		teamID := prin.TeamID
		if actx.User != nil {
			teamID = actx.User.TeamID
		}
		team, err := p.loader.GetTeamWithMembers(ctx, teamID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NotFound[T]()
			}
			log.Error().Err(err).Msg("pipeline: carga de equipe falhou")
			return Internal[T]()
		}
		actx.Team = &team
	}

	// Estágio 4: validação. A mensagem é sempre a negação genérica.
	if validated, ok := any(req).(Validated); ok {
		if !validated.Rule()(actx) {
			return Forbidden[T]()
		}
	}

	// Estágio 5: transação, somente para comandos mutantes.
	if _, ok := any(req).(Mutates); ok && p.tx != nil {
		var result Result[T]
		err := p.tx.WithinTx(ctx, func(txCtx context.Context) error {
			result = handler(txCtx, actx, req)
			if !result.OK() {
				return errShortCircuit
			}
			return nil
		})
		if err != nil && !errors.Is(err, errShortCircuit) {
			log.Error().Err(err).Msg("pipeline: transação falhou")
			return Internal[T]()
		}
		return result
	}

	return handler(ctx, actx, req)
}
