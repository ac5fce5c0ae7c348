package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gestaozabele/identidade/internal/principal"
	"github.com/gestaozabele/identidade/internal/repo"
)

type stubLoader struct {
	user    repo.User
	userErr error
	team    repo.Team
	teamErr error

	userCalls int
	teamCalls int
}

func (s *stubLoader) FindUserWithTeamDetails(ctx context.Context, id uuid.UUID) (repo.User, error) {
	s.userCalls++
	return s.user, s.userErr
}

func (s *stubLoader) GetTeamWithMembers(ctx context.Context, id uuid.UUID) (repo.Team, error) {
	s.teamCalls++
	return s.team, s.teamErr
}

type stubTx struct {
	calls      int
	lastErr    error
	rolledBack bool
}

func (s *stubTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.calls++
	s.lastErr = fn(ctx)
	s.rolledBack = s.lastErr != nil
	return s.lastErr
}

func authenticatedPrincipal() principal.Info {
	return principal.Info{
		UserID:        uuid.New(),
		TeamID:        uuid.New(),
		TeamPosition:  5,
		Authenticated: true,
		TeamType:      repo.TeamCustomer,
	}
}

type openRequest struct{}

type authedRequest struct{}

func (authedRequest) RequiresAuth() {}

type teamRequest struct{}

func (teamRequest) RequiresAuth() {}
func (teamRequest) RequiresTeam() {}

type ruledRequest struct{ rule Rule }

func (ruledRequest) RequiresAuth() {}
func (r ruledRequest) Rule() Rule  { return r.rule }

type mutatingRequest struct{}

func (mutatingRequest) RequiresAuth() {}
func (mutatingRequest) Mutates()      {}

func TestExecuteOpenRequestSkipsAuth(t *testing.T) {
	p := New(&stubLoader{}, &stubTx{})

	result := Execute(context.Background(), p, principal.Info{}, openRequest{}, func(ctx context.Context, actx *AuthContext, req openRequest) Result[string] {
		return Ok("ok")
	})

	if !result.OK() || result.Value != "ok" {
		t.Fatalf("requisição aberta deveria executar: %+v", result)
	}
}

func TestExecuteUnauthenticatedShortCircuits(t *testing.T) {
	loader := &stubLoader{}
	p := New(loader, &stubTx{})

	invoked := false
	result := Execute(context.Background(), p, principal.Info{}, authedRequest{}, func(ctx context.Context, actx *AuthContext, req authedRequest) Result[int] {
		invoked = true
		return Ok(1)
	})

	if result.Status != StatusUnauthorized {
		t.Fatalf("esperado Unauthorized, veio %v", result.Status)
	}
	if invoked {
		t.Fatal("handler não pode executar sem autenticação")
	}
	if loader.userCalls+loader.teamCalls != 0 {
		t.Fatal("nenhum estágio posterior deve rodar após a falha")
	}
}

func TestExecuteLoadsTeam(t *testing.T) {
	leaderID := uuid.New()
	loader := &stubLoader{team: repo.Team{ID: uuid.New(), LeaderID: &leaderID}}
	p := New(loader, &stubTx{})

	result := Execute(context.Background(), p, authenticatedPrincipal(), teamRequest{}, func(ctx context.Context, actx *AuthContext, req teamRequest) Result[uuid.UUID] {
		if actx.Team == nil {
			t.Fatal("equipe deveria estar carregada")
		}
		return Ok(actx.Team.ID)
	})

	if !result.OK() {
		t.Fatalf("esperado sucesso: %+v", result)
	}
	if loader.teamCalls != 1 {
		t.Fatalf("equipe carregada %d vezes", loader.teamCalls)
	}
}

func TestExecuteTeamNotFound(t *testing.T) {
	loader := &stubLoader{teamErr: repo.ErrNotFound}
	p := New(loader, &stubTx{})

	invoked := false
	result := Execute(context.Background(), p, authenticatedPrincipal(), teamRequest{}, func(ctx context.Context, actx *AuthContext, req teamRequest) Result[int] {
		invoked = true
		return Ok(0)
	})

	if result.Status != StatusNotFound {
		t.Fatalf("esperado NotFound, veio %v", result.Status)
	}
	if invoked {
		t.Fatal("handler não pode executar sem a equipe")
	}
}

func TestExecuteRuleDenialIsGeneric(t *testing.T) {
	p := New(&stubLoader{}, &stubTx{})

	req := ruledRequest{rule: func(actx *AuthContext) bool { return false }}
	result := Execute(context.Background(), p, authenticatedPrincipal(), req, func(ctx context.Context, actx *AuthContext, r ruledRequest) Result[int] {
		t.Fatal("handler não pode executar após regra negada")
		return Ok(0)
	})

	if result.Status != StatusForbidden {
		t.Fatalf("esperado Forbidden, veio %v", result.Status)
	}
	if result.Message != "acesso negado" {
		t.Fatalf("negação deve ser genérica, veio %q", result.Message)
	}
}

func TestExecuteCombinators(t *testing.T) {
	actx := &AuthContext{Principal: authenticatedPrincipal()}

	if !All(Authenticated(), PositionAtLeast(5))(actx) {
		t.Fatal("All deveria aceitar")
	}
	if All(Authenticated(), PositionAtLeast(6))(actx) {
		t.Fatal("All deveria negar com posição insuficiente")
	}
	if !Any(SuperMinimum(), PositionAtLeast(1))(actx) {
		t.Fatal("Any deveria aceitar pela posição")
	}
	if Any(SuperMinimum(), MntcMinimum())(actx) {
		t.Fatal("Any deveria negar cliente comum")
	}
}

func TestExecuteMutationRunsInTx(t *testing.T) {
	tx := &stubTx{}
	p := New(&stubLoader{}, tx)

	result := Execute(context.Background(), p, authenticatedPrincipal(), mutatingRequest{}, func(ctx context.Context, actx *AuthContext, req mutatingRequest) Result[string] {
		return Ok("feito")
	})

	if !result.OK() || result.Value != "feito" {
		t.Fatalf("esperado sucesso: %+v", result)
	}
	if tx.calls != 1 {
		t.Fatalf("mutação deveria rodar em transação, calls=%d", tx.calls)
	}
	if tx.rolledBack {
		t.Fatal("sucesso não pode sinalizar rollback")
	}
}

func TestExecuteMutationFailureRollsBackAndKeepsResult(t *testing.T) {
	tx := &stubTx{}
	p := New(&stubLoader{}, tx)

	result := Execute(context.Background(), p, authenticatedPrincipal(), mutatingRequest{}, func(ctx context.Context, actx *AuthContext, req mutatingRequest) Result[string] {
		return Conflict[string]("capacidade da equipe atingida")
	})

	if result.Status != StatusConflict {
		t.Fatalf("resultado de negócio deveria sobreviver ao rollback: %+v", result)
	}
	if result.Message != "capacidade da equipe atingida" {
		t.Fatalf("mensagem perdida: %q", result.Message)
	}
	if !tx.rolledBack {
		t.Fatal("falha de negócio deve abortar a transação")
	}
	if tx.lastErr == nil || errors.Is(tx.lastErr, context.Canceled) {
		t.Fatal("a transação deve receber erro sinalizador")
	}
}

func TestExecuteNonMutatingSkipsTx(t *testing.T) {
	tx := &stubTx{}
	p := New(&stubLoader{}, tx)

	Execute(context.Background(), p, authenticatedPrincipal(), authedRequest{}, func(ctx context.Context, actx *AuthContext, req authedRequest) Result[int] {
		return Ok(1)
	})

	if tx.calls != 0 {
		t.Fatal("leitura não abre transação")
	}
}
