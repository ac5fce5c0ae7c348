package permission

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gestaozabele/identidade/internal/principal"
	"github.com/gestaozabele/identidade/internal/repo"
)

func customerActor(position int) principal.Info {
	return principal.Info{
		UserID:        uuid.New(),
		TeamID:        uuid.New(),
		TeamPosition:  position,
		Authenticated: true,
		TeamType:      repo.TeamCustomer,
	}
}

func superActor(position int) principal.Info {
	info := customerActor(position)
	info.TeamType = repo.TeamSuper
	return info
}

func customerTeam(min, max int) *repo.Team {
	return &repo.Team{
		ID:          uuid.New(),
		Type:        repo.TeamCustomer,
		MinPosition: min,
		MaxPosition: max,
	}
}

func TestCanAddMember(t *testing.T) {
	actor := customerActor(5)
	team := customerTeam(0, 10)

	cases := []struct {
		name        string
		actor       principal.Info
		team        *repo.Team
		newPosition int
		wantErr     bool
	}{
		{"posição igual à do ator", actor, team, 5, true},
		{"posição acima do ator", actor, team, 6, true},
		{"posição imediatamente abaixo", actor, team, 4, false},
		{"posição no piso da faixa", actor, team, 0, false},
		{"fora da faixa", customerActor(20), customerTeam(5, 10), 3, true},
		{"equipe nula", actor, nil, 1, true},
		{"anônimo", principal.Info{TeamPosition: 9}, team, 1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CanAddMember(tc.actor, tc.team, tc.newPosition)
			if tc.wantErr && !errors.Is(err, ErrForbidden) {
				t.Fatalf("esperado ErrForbidden, veio %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("esperado sucesso, veio %v", err)
			}
		})
	}
}

func TestCanAddMemberMntcOnNonCustomerTeam(t *testing.T) {
	mntcTeam := &repo.Team{Type: repo.TeamMaintenance, MinPosition: 0, MaxPosition: 10}

	customer := customerActor(8)
	if err := CanAddMember(customer, mntcTeam, 2); !errors.Is(err, ErrForbidden) {
		t.Fatal("cliente não pode incluir em equipe de manutenção")
	}

	mntc := customerActor(8)
	mntc.TeamType = repo.TeamMaintenance
	if err := CanAddMember(mntc, mntcTeam, 2); err != nil {
		t.Fatalf("manutenção deveria incluir: %v", err)
	}
}

func TestCanDeleteMember(t *testing.T) {
	actor := customerActor(5)

	self := &repo.User{ID: actor.UserID, TeamID: actor.TeamID, Position: 5}
	if err := CanDeleteMember(actor, self); !errors.Is(err, ErrForbidden) {
		t.Fatal("auto-remoção usa o encerramento de conta, não a remoção administrativa")
	}

	lower := &repo.User{ID: uuid.New(), TeamID: actor.TeamID, Position: 3}
	if err := CanDeleteMember(actor, lower); err != nil {
		t.Fatalf("posição inferior deveria ser removível: %v", err)
	}

	equal := &repo.User{ID: uuid.New(), TeamID: actor.TeamID, Position: 5}
	if err := CanDeleteMember(actor, equal); !errors.Is(err, ErrForbidden) {
		t.Fatal("posição igual não é removível por cliente")
	}

	if err := CanDeleteMember(superActor(0), equal); err != nil {
		t.Fatalf("super remove independente de posição: %v", err)
	}

	superSelf := superActor(0)
	if err := CanDeleteMember(superSelf, &repo.User{ID: superSelf.UserID}); !errors.Is(err, ErrForbidden) {
		t.Fatal("nem super remove a si mesmo por este caminho")
	}
}

func TestCanUpdateMember(t *testing.T) {
	actor := customerActor(5)

	self := &repo.User{ID: actor.UserID, TeamID: actor.TeamID, Position: 5}
	if err := CanUpdateMember(actor, self); err != nil {
		t.Fatalf("próprio cadastro sempre atualizável: %v", err)
	}

	peer := &repo.User{ID: uuid.New(), TeamID: actor.TeamID, Position: 5}
	if err := CanUpdateMember(actor, peer); !errors.Is(err, ErrForbidden) {
		t.Fatal("mesma posição não é atualizável")
	}

	lower := &repo.User{ID: uuid.New(), TeamID: actor.TeamID, Position: 2}
	if err := CanUpdateMember(actor, lower); err != nil {
		t.Fatalf("posição inferior da mesma equipe: %v", err)
	}

	otherTeam := &repo.User{ID: uuid.New(), TeamID: uuid.New(), Position: 1}
	if err := CanUpdateMember(actor, otherTeam); !errors.Is(err, ErrForbidden) {
		t.Fatal("outra equipe exige super")
	}
	if err := CanUpdateMember(superActor(0), otherTeam); err != nil {
		t.Fatalf("super atravessa equipes: %v", err)
	}
}

func TestCanViewMember(t *testing.T) {
	actor := customerActor(5)

	equal := &repo.User{ID: uuid.New(), TeamID: actor.TeamID, Position: 5}
	if err := CanViewMember(actor, equal); err != nil {
		t.Fatalf("visualização aceita posição igual: %v", err)
	}

	higher := &repo.User{ID: uuid.New(), TeamID: actor.TeamID, Position: 6}
	if err := CanViewMember(actor, higher); !errors.Is(err, ErrForbidden) {
		t.Fatal("posição superior não é visível")
	}
}

func TestCanChangeLeader(t *testing.T) {
	leaderID := uuid.New()
	memberID := uuid.New()
	team := customerTeam(0, 10)
	team.LeaderID = &leaderID
	team.Members = []repo.User{{ID: leaderID}, {ID: memberID}}

	leader := customerActor(8)
	leader.UserID = leaderID
	if err := CanChangeLeader(leader, team, memberID); err != nil {
		t.Fatalf("líder atual transfere: %v", err)
	}

	if err := CanChangeLeader(leader, team, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatal("candidato precisa ser membro da equipe")
	}

	outsider := customerActor(9)
	if err := CanChangeLeader(outsider, team, memberID); !errors.Is(err, ErrForbidden) {
		t.Fatal("não-líder sem super não transfere")
	}

	if err := CanChangeLeader(superActor(0), team, memberID); err != nil {
		t.Fatalf("super transfere liderança: %v", err)
	}
}

func TestCanChangePosition(t *testing.T) {
	actor := customerActor(5)
	team := customerTeam(0, 10)
	target := &repo.User{ID: uuid.New(), TeamID: actor.TeamID, Position: 3}

	if err := CanChangePosition(actor, team, target, 4); err != nil {
		t.Fatalf("movimento dentro da alçada: %v", err)
	}
	if err := CanChangePosition(actor, team, target, 5); !errors.Is(err, ErrForbidden) {
		t.Fatal("nova posição igual à do ator é negada")
	}
	if err := CanChangePosition(actor, team, &repo.User{ID: uuid.New(), Position: 5}, 2); !errors.Is(err, ErrForbidden) {
		t.Fatal("alvo com posição igual à do ator é intocável")
	}
	if err := CanChangePosition(actor, team, target, -1); !errors.Is(err, ErrForbidden) {
		t.Fatal("abaixo do piso da faixa é negado")
	}
}

// Toda negação devolve o mesmo erro, independentemente da regra que falhou.
func TestDenialsAreUniform(t *testing.T) {
	actor := customerActor(5)
	team := customerTeam(0, 10)

	denials := []error{
		CanAddMember(actor, team, 5),
		CanAddMember(actor, nil, 1),
		CanDeleteMember(actor, nil),
		CanUpdateMember(principal.Info{}, &repo.User{}),
		CanViewMember(actor, &repo.User{ID: uuid.New(), TeamID: uuid.New(), Position: 0}),
		CanChangeLeader(actor, team, uuid.New()),
		CanChangePosition(actor, team, &repo.User{Position: 9}, 1),
	}

	for i, err := range denials {
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("negação %d devolveu %v em vez de ErrForbidden", i, err)
		}
	}
}
