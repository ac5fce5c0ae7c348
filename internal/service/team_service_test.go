package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/identidade/internal/event"
	"github.com/gestaozabele/identidade/internal/pipeline"
	"github.com/gestaozabele/identidade/internal/principal"
	"github.com/gestaozabele/identidade/internal/repo"
)

type stubTeamRepo struct {
	users map[uuid.UUID]*repo.User
	teams map[uuid.UUID]*repo.Team

	revokedUsers []uuid.UUID
	deletedUsers []uuid.UUID
}

func newStubTeamRepo() *stubTeamRepo {
	return &stubTeamRepo{
		users: make(map[uuid.UUID]*repo.User),
		teams: make(map[uuid.UUID]*repo.Team),
	}
}

func (s *stubTeamRepo) GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error) {
	if u, ok := s.users[id]; ok {
		return *u, nil
	}
	return repo.User{}, repo.ErrNotFound
}

func (s *stubTeamRepo) FindUserWithTeamDetails(ctx context.Context, id uuid.UUID) (repo.User, error) {
	return s.GetUserByID(ctx, id)
}

func (s *stubTeamRepo) GetTeamByID(ctx context.Context, id uuid.UUID) (repo.Team, error) {
	if t, ok := s.teams[id]; ok {
		return *t, nil
	}
	return repo.Team{}, repo.ErrNotFound
}

func (s *stubTeamRepo) GetTeamWithMembers(ctx context.Context, id uuid.UUID) (repo.Team, error) {
	team, err := s.GetTeamByID(ctx, id)
	if err != nil {
		return repo.Team{}, err
	}
	team.Members = nil
	for _, u := range s.users {
		if u.TeamID == id {
			team.Members = append(team.Members, *u)
		}
	}
	return team, nil
}

func (s *stubTeamRepo) InsertUser(ctx context.Context, input repo.CreateUserInput) (repo.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, input.Email) {
			return repo.User{}, repo.ErrDuplicate
		}
	}
	user := repo.User{
		ID:           uuid.New(),
		TeamID:       input.TeamID,
		Name:         input.Name,
		Username:     input.Username,
		Email:        input.Email,
		PhoneNumber:  input.PhoneNumber,
		PasswordHash: input.PasswordHash,
		Position:     input.Position,
	}
	s.users[user.ID] = &user
	return user, nil
}

func (s *stubTeamRepo) UpdateUser(ctx context.Context, id uuid.UUID, name string, phoneNumber *string) error {
	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Name = name
	u.PhoneNumber = phoneNumber
	return nil
}

func (s *stubTeamRepo) UpdateUserPosition(ctx context.Context, id uuid.UUID, position int) error {
	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Position = position
	return nil
}

func (s *stubTeamRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.users, id)
	s.deletedUsers = append(s.deletedUsers, id)
	return nil
}

func (s *stubTeamRepo) UpdateTeamLeader(ctx context.Context, teamID, leaderID uuid.UUID) error {
	t, ok := s.teams[teamID]
	if !ok {
		return repo.ErrNotFound
	}
	t.LeaderID = &leaderID
	return nil
}

func (s *stubTeamRepo) UpdateTeamPositionRange(ctx context.Context, teamID uuid.UUID, minPosition, maxPosition int) error {
	t, ok := s.teams[teamID]
	if !ok {
		return repo.ErrNotFound
	}
	t.MinPosition = minPosition
	t.MaxPosition = maxPosition
	return nil
}

func (s *stubTeamRepo) RevokeRefreshTokensByUser(ctx context.Context, userID uuid.UUID) error {
	s.revokedUsers = append(s.revokedUsers, userID)
	return nil
}

// passTx executa a função diretamente, contando transações abertas.
type passTx struct {
	calls int
}

func (p *passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

type teamFixture struct {
	repo    *stubTeamRepo
	tx      *passTx
	events  *capturePublisher
	service *TeamService
	team    *repo.Team
}

func newTeamFixture(t *testing.T) *teamFixture {
	t.Helper()

	repoStub := newStubTeamRepo()
	tx := &passTx{}
	events := &capturePublisher{}

	team := &repo.Team{
		ID:          uuid.New(),
		Name:        "Equipe Cliente",
		Type:        repo.TeamCustomer,
		MinPosition: 0,
		MaxPosition: 10,
	}
	repoStub.teams[team.ID] = team

	return &teamFixture{
		repo:    repoStub,
		tx:      tx,
		events:  events,
		service: NewTeamService(repoStub, pipeline.New(repoStub, tx), events),
		team:    team,
	}
}

func (f *teamFixture) addMember(position int, email string) *repo.User {
	user := &repo.User{
		ID:       uuid.New(),
		TeamID:   f.team.ID,
		Name:     "Membro",
		Email:    email,
		Position: position,
	}
	f.repo.users[user.ID] = user
	return user
}

func (f *teamFixture) principalFor(u *repo.User) principal.Info {
	return principal.Info{
		UserID:        u.ID,
		TeamID:        u.TeamID,
		TeamPosition:  u.Position,
		Email:         u.Email,
		Authenticated: true,
		TeamType:      f.team.Type,
	}
}

func TestAddMemberHierarchy(t *testing.T) {
	f := newTeamFixture(t)
	actor := f.addMember(5, "ana@example.com")
	prin := f.principalFor(actor)

	// Posição igual à do ator é negada; imediatamente abaixo é aceita.
	denied := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:     "Novo",
		Email:    "novo@example.com",
		Password: "senha12345",
		Position: 5,
	})
	require.Equal(t, pipeline.StatusForbidden, denied.Status)

	granted := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:     "Novo",
		Email:    "novo@example.com",
		Password: "senha12345",
		Position: 4,
	})
	require.Equal(t, pipeline.StatusOK, granted.Status)
	require.Equal(t, 4, granted.Value.Position)
	require.Equal(t, f.team.ID, granted.Value.TeamID)
	require.NotNil(t, granted.Value.PasswordHash)
	require.NotNil(t, f.events.last(event.TypeMemberAdded))
	require.Equal(t, 2, f.tx.calls, "cada comando mutante abre a própria transação")
}

func TestAddMemberRequiresAuthentication(t *testing.T) {
	f := newTeamFixture(t)

	result := f.service.AddMember(context.Background(), principal.Info{}, AddMemberRequest{
		Name:     "Novo",
		Email:    "novo@example.com",
		Password: "senha12345",
		Position: 1,
	})
	require.Equal(t, pipeline.StatusUnauthorized, result.Status)
	require.Zero(t, f.tx.calls)
}

func TestAddMemberValidation(t *testing.T) {
	f := newTeamFixture(t)
	actor := f.addMember(5, "ana@example.com")
	prin := f.principalFor(actor)

	badEmail := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:     "Novo",
		Email:    "sem-arroba",
		Password: "senha12345",
		Position: 1,
	})
	require.Equal(t, pipeline.StatusBadRequest, badEmail.Status)

	shortPassword := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:     "Novo",
		Email:    "novo@example.com",
		Password: "curta",
		Position: 1,
	})
	require.Equal(t, pipeline.StatusBadRequest, shortPassword.Status)

	badPhone := "99999"
	invalidPhone := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:        "Novo",
		Email:       "novo@example.com",
		PhoneNumber: &badPhone,
		Password:    "senha12345",
		Position:    1,
	})
	require.Equal(t, pipeline.StatusBadRequest, invalidPhone.Status)

	blankName := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:     "   ",
		Email:    "novo@example.com",
		Password: "senha12345",
		Position: 1,
	})
	require.Equal(t, pipeline.StatusBadRequest, blankName.Status)

	duplicate := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:     "Outra",
		Email:    "ana@example.com",
		Password: "senha12345",
		Position: 1,
	})
	require.Equal(t, pipeline.StatusBadRequest, duplicate.Status)
}

func TestAddMemberCapacity(t *testing.T) {
	f := newTeamFixture(t)
	f.team.Capacity = 2
	actor := f.addMember(5, "ana@example.com")
	f.addMember(1, "bia@example.com")
	prin := f.principalFor(actor)

	result := f.service.AddMember(context.Background(), prin, AddMemberRequest{
		Name:     "Novo",
		Email:    "novo@example.com",
		Password: "senha12345",
		Position: 1,
	})
	require.Equal(t, pipeline.StatusConflict, result.Status)
}

func TestDeleteMember(t *testing.T) {
	f := newTeamFixture(t)
	actor := f.addMember(5, "ana@example.com")
	target := f.addMember(2, "bia@example.com")
	prin := f.principalFor(actor)

	result := f.service.DeleteMember(context.Background(), prin, DeleteMemberRequest{TargetID: target.ID})
	require.Equal(t, pipeline.StatusOK, result.Status)
	require.Contains(t, f.repo.deletedUsers, target.ID)
	require.Contains(t, f.repo.revokedUsers, target.ID)
	require.NotNil(t, f.events.last(event.TypeMemberRemoved))

	missing := f.service.DeleteMember(context.Background(), prin, DeleteMemberRequest{TargetID: uuid.New()})
	require.Equal(t, pipeline.StatusNotFound, missing.Status)

	self := f.service.DeleteMember(context.Background(), prin, DeleteMemberRequest{TargetID: actor.ID})
	require.Equal(t, pipeline.StatusForbidden, self.Status)
}

func TestDeleteMemberLeaderIsProtected(t *testing.T) {
	f := newTeamFixture(t)
	actor := f.addMember(8, "ana@example.com")
	leader := f.addMember(2, "lider@example.com")
	f.team.LeaderID = &leader.ID

	result := f.service.DeleteMember(context.Background(), f.principalFor(actor), DeleteMemberRequest{TargetID: leader.ID})
	require.Equal(t, pipeline.StatusConflict, result.Status)
	require.Empty(t, f.repo.deletedUsers)
}

func TestUpdateMember(t *testing.T) {
	f := newTeamFixture(t)
	actor := f.addMember(5, "ana@example.com")
	prin := f.principalFor(actor)

	phone := "+5511988887777"
	result := f.service.UpdateMember(context.Background(), prin, UpdateMemberRequest{
		TargetID:    actor.ID,
		Name:        "Ana Souza",
		PhoneNumber: &phone,
	})
	require.Equal(t, pipeline.StatusOK, result.Status)
	require.Equal(t, "Ana Souza", result.Value.Name)
	require.Equal(t, "Ana Souza", f.repo.users[actor.ID].Name)

	blank := f.service.UpdateMember(context.Background(), prin, UpdateMemberRequest{
		TargetID: actor.ID,
		Name:     "   ",
	})
	require.Equal(t, pipeline.StatusBadRequest, blank.Status)

	badPhone := "telefone"
	invalidPhone := f.service.UpdateMember(context.Background(), prin, UpdateMemberRequest{
		TargetID:    actor.ID,
		Name:        "Ana Souza",
		PhoneNumber: &badPhone,
	})
	require.Equal(t, pipeline.StatusBadRequest, invalidPhone.Status)

	peer := f.addMember(5, "bia@example.com")
	forbidden := f.service.UpdateMember(context.Background(), prin, UpdateMemberRequest{
		TargetID: peer.ID,
		Name:     "Outro Nome",
	})
	require.Equal(t, pipeline.StatusForbidden, forbidden.Status)
}

func TestGetMemberVisibility(t *testing.T) {
	f := newTeamFixture(t)
	actor := f.addMember(5, "ana@example.com")
	peer := f.addMember(5, "bia@example.com")
	boss := f.addMember(8, "chefe@example.com")
	prin := f.principalFor(actor)

	visible := f.service.GetMember(context.Background(), prin, GetMemberRequest{TargetID: peer.ID})
	require.Equal(t, pipeline.StatusOK, visible.Status)

	hidden := f.service.GetMember(context.Background(), prin, GetMemberRequest{TargetID: boss.ID})
	require.Equal(t, pipeline.StatusForbidden, hidden.Status)

	require.Zero(t, f.tx.calls, "consulta não abre transação")
}

func TestChangeLeader(t *testing.T) {
	f := newTeamFixture(t)
	leader := f.addMember(8, "lider@example.com")
	member := f.addMember(3, "bia@example.com")
	f.team.LeaderID = &leader.ID

	// TeamID omitido resolve para a equipe do ator.
	result := f.service.ChangeLeader(context.Background(), f.principalFor(leader), ChangeLeaderRequest{
		NewLeaderID: member.ID,
	})
	require.Equal(t, pipeline.StatusOK, result.Status)
	require.Equal(t, member.ID, *f.repo.teams[f.team.ID].LeaderID)
	require.NotNil(t, f.events.last(event.TypeLeaderChanged))
}

func TestChangeLeaderDeniedForNonLeader(t *testing.T) {
	f := newTeamFixture(t)
	leader := f.addMember(8, "lider@example.com")
	other := f.addMember(9, "ana@example.com")
	member := f.addMember(3, "bia@example.com")
	f.team.LeaderID = &leader.ID

	result := f.service.ChangeLeader(context.Background(), f.principalFor(other), ChangeLeaderRequest{
		NewLeaderID: member.ID,
	})
	require.Equal(t, pipeline.StatusForbidden, result.Status)
	require.Equal(t, leader.ID, *f.repo.teams[f.team.ID].LeaderID)
}

func TestChangePosition(t *testing.T) {
	f := newTeamFixture(t)
	actor := f.addMember(5, "ana@example.com")
	target := f.addMember(2, "bia@example.com")
	prin := f.principalFor(actor)

	result := f.service.ChangePosition(context.Background(), prin, ChangePositionRequest{
		TargetID:    target.ID,
		NewPosition: 4,
	})
	require.Equal(t, pipeline.StatusOK, result.Status)
	require.Equal(t, 4, f.repo.users[target.ID].Position)

	tooHigh := f.service.ChangePosition(context.Background(), prin, ChangePositionRequest{
		TargetID:    target.ID,
		NewPosition: 5,
	})
	require.Equal(t, pipeline.StatusForbidden, tooHigh.Status)
	require.Equal(t, 4, f.repo.users[target.ID].Position)
}

func TestUpdatePositionRange(t *testing.T) {
	f := newTeamFixture(t)
	leader := f.addMember(8, "lider@example.com")
	f.addMember(3, "bia@example.com")
	f.team.LeaderID = &leader.ID
	prin := f.principalFor(leader)

	result := f.service.UpdatePositionRange(context.Background(), prin, UpdatePositionRangeRequest{
		MinPosition: 1,
		MaxPosition: 9,
	})
	require.Equal(t, pipeline.StatusOK, result.Status)
	require.Equal(t, 1, result.Value.MinPosition)
	require.Equal(t, 9, result.Value.MaxPosition)
	require.Equal(t, 1, f.repo.teams[f.team.ID].MinPosition)

	inverted := f.service.UpdatePositionRange(context.Background(), prin, UpdatePositionRangeRequest{
		MinPosition: 6,
		MaxPosition: 2,
	})
	require.Equal(t, pipeline.StatusBadRequest, inverted.Status)

	// Faixa que exclui a posição de um membro atual é rejeitada.
	excluding := f.service.UpdatePositionRange(context.Background(), prin, UpdatePositionRangeRequest{
		MinPosition: 4,
		MaxPosition: 9,
	})
	require.Equal(t, pipeline.StatusBadRequest, excluding.Status)
	require.Equal(t, 1, f.repo.teams[f.team.ID].MinPosition)
}

func TestUpdatePositionRangeRequiresLeadership(t *testing.T) {
	f := newTeamFixture(t)
	leader := f.addMember(8, "lider@example.com")
	member := f.addMember(3, "bia@example.com")
	f.team.LeaderID = &leader.ID

	result := f.service.UpdatePositionRange(context.Background(), f.principalFor(member), UpdatePositionRangeRequest{
		MinPosition: 0,
		MaxPosition: 9,
	})
	require.Equal(t, pipeline.StatusForbidden, result.Status)

	// Super atravessa a regra de liderança.
	superPrin := f.principalFor(member)
	superPrin.TeamType = repo.TeamSuper
	elevated := f.service.UpdatePositionRange(context.Background(), superPrin, UpdatePositionRangeRequest{
		MinPosition: 0,
		MaxPosition: 9,
	})
	require.Equal(t, pipeline.StatusOK, elevated.Status)
}
