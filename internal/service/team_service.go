package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/event"
	"github.com/gestaozabele/identidade/internal/permission"
	"github.com/gestaozabele/identidade/internal/pipeline"
	"github.com/gestaozabele/identidade/internal/principal"
	"github.com/gestaozabele/identidade/internal/repo"
	"github.com/gestaozabele/identidade/internal/util"
)

type teamRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error)
	GetTeamByID(ctx context.Context, id uuid.UUID) (repo.Team, error)
	GetTeamWithMembers(ctx context.Context, id uuid.UUID) (repo.Team, error)
	InsertUser(ctx context.Context, input repo.CreateUserInput) (repo.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, name string, phoneNumber *string) error
	UpdateUserPosition(ctx context.Context, id uuid.UUID, position int) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	UpdateTeamLeader(ctx context.Context, teamID, leaderID uuid.UUID) error
	UpdateTeamPositionRange(ctx context.Context, teamID uuid.UUID, minPosition, maxPosition int) error
	RevokeRefreshTokensByUser(ctx context.Context, userID uuid.UUID) error
}

// TeamService executa os comandos de gestão de equipe através do pipeline.
type TeamService struct {
	repo     teamRepository
	pipeline *pipeline.Pipeline
	events   event.Publisher
}

// NewTeamService cria nova instância.
func NewTeamService(r teamRepository, p *pipeline.Pipeline, events event.Publisher) *TeamService {
	return &TeamService{repo: r, pipeline: p, events: events}
}

// AddMemberRequest inclui novo membro na equipe do ator.
type AddMemberRequest struct {
	Name        string
	Username    string
	Email       string
	PhoneNumber *string
	Password    string
	Position    int
}

func (AddMemberRequest) RequiresAuth() {}
func (AddMemberRequest) RequiresTeam() {}
func (AddMemberRequest) Mutates()      {}

func (AddMemberRequest) Rule() pipeline.Rule {
	return pipeline.Authenticated()
}

// AddMember cadastra membro abaixo da posição do ator.
func (s *TeamService) AddMember(ctx context.Context, prin principal.Info, req AddMemberRequest) pipeline.Result[repo.User] {
	return pipeline.Execute(ctx, s.pipeline, prin, req, s.addMember)
}

func (s *TeamService) addMember(ctx context.Context, actx *pipeline.AuthContext, req AddMemberRequest) pipeline.Result[repo.User] {
	team := actx.Team

	if err := permission.CanAddMember(actx.Principal, team, req.Position); err != nil {
		return pipeline.Forbidden[repo.User]()
	}

	if err := util.RequireString(req.Name, "nome"); err != nil {
		return pipeline.BadRequest[repo.User](err.Error())
	}
	if err := util.ValidateEmail(req.Email); err != nil {
		return pipeline.BadRequest[repo.User](err.Error())
	}
	if err := util.ValidatePassword(req.Password); err != nil {
		return pipeline.BadRequest[repo.User](err.Error())
	}
	if req.PhoneNumber != nil {
		if err := util.ValidatePhone(*req.PhoneNumber); err != nil {
			return pipeline.BadRequest[repo.User](err.Error())
		}
	}
	if team.Type == repo.TeamCustomer && team.Capacity > 0 && len(team.Members) >= team.Capacity {
		return pipeline.Conflict[repo.User]("capacidade da equipe atingida")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return pipeline.Internal[repo.User]()
	}

	user, err := s.repo.InsertUser(ctx, repo.CreateUserInput{
		TeamID:       team.ID,
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: &hash,
		Position:     req.Position,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return pipeline.BadRequest[repo.User]("e-mail ou username já cadastrado")
		}
		return pipeline.Internal[repo.User]()
	}

	s.publish(ctx, event.New(event.TypeMemberAdded, map[string]any{
		"user_id":  user.ID.String(),
		"team_id":  team.ID.String(),
		"position": user.Position,
	}))
	return pipeline.Ok(user)
}

// DeleteMemberRequest remove membro pelo caminho administrativo.
type DeleteMemberRequest struct {
	TargetID uuid.UUID
}

func (DeleteMemberRequest) RequiresAuth() {}
func (DeleteMemberRequest) Mutates()      {}

func (DeleteMemberRequest) Rule() pipeline.Rule {
	return pipeline.Authenticated()
}

// DeleteMember remove membro de posição inferior à do ator.
func (s *TeamService) DeleteMember(ctx context.Context, prin principal.Info, req DeleteMemberRequest) pipeline.Result[struct{}] {
	return pipeline.Execute(ctx, s.pipeline, prin, req, s.deleteMember)
}

func (s *TeamService) deleteMember(ctx context.Context, actx *pipeline.AuthContext, req DeleteMemberRequest) pipeline.Result[struct{}] {
	target, err := s.repo.GetUserByID(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return pipeline.NotFound[struct{}]()
		}
		return pipeline.Internal[struct{}]()
	}

	if err := permission.CanDeleteMember(actx.Principal, &target); err != nil {
		return pipeline.Forbidden[struct{}]()
	}

	team, err := s.repo.GetTeamByID(ctx, target.TeamID)
	if err != nil {
		return pipeline.Internal[struct{}]()
	}
	// Líder ativo não pode ser removido; a liderança é transferida antes.
	if team.LeaderID != nil && *team.LeaderID == target.ID {
		return pipeline.Conflict[struct{}]("liderança deve ser transferida antes")
	}

	if err := s.repo.DeleteUser(ctx, target.ID); err != nil {
		return pipeline.Internal[struct{}]()
	}
	if err := s.repo.RevokeRefreshTokensByUser(ctx, target.ID); err != nil {
		return pipeline.Internal[struct{}]()
	}

	s.publish(ctx, event.New(event.TypeMemberRemoved, map[string]any{
		"user_id": target.ID.String(),
		"team_id": target.TeamID.String(),
	}))
	return pipeline.Ok(struct{}{})
}

// UpdateMemberRequest altera dados cadastrais do membro.
type UpdateMemberRequest struct {
	TargetID    uuid.UUID
	Name        string
	PhoneNumber *string
}

func (UpdateMemberRequest) RequiresAuth() {}
func (UpdateMemberRequest) Mutates()      {}

func (UpdateMemberRequest) Rule() pipeline.Rule {
	return pipeline.Authenticated()
}

// UpdateMember atualiza membro próprio ou de posição inferior.
func (s *TeamService) UpdateMember(ctx context.Context, prin principal.Info, req UpdateMemberRequest) pipeline.Result[repo.User] {
	return pipeline.Execute(ctx, s.pipeline, prin, req, s.updateMember)
}

func (s *TeamService) updateMember(ctx context.Context, actx *pipeline.AuthContext, req UpdateMemberRequest) pipeline.Result[repo.User] {
	target, err := s.repo.GetUserByID(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return pipeline.NotFound[repo.User]()
		}
		return pipeline.Internal[repo.User]()
	}

	if err := permission.CanUpdateMember(actx.Principal, &target); err != nil {
		return pipeline.Forbidden[repo.User]()
	}

	if err := util.RequireString(req.Name, "nome"); err != nil {
		return pipeline.BadRequest[repo.User](err.Error())
	}
	if req.PhoneNumber != nil {
		if err := util.ValidatePhone(*req.PhoneNumber); err != nil {
			return pipeline.BadRequest[repo.User](err.Error())
		}
	}

	if err := s.repo.UpdateUser(ctx, target.ID, req.Name, req.PhoneNumber); err != nil {
		return pipeline.Internal[repo.User]()
	}

	target.Name = strings.TrimSpace(req.Name)
	target.PhoneNumber = req.PhoneNumber
	return pipeline.Ok(target)
}

// GetMemberRequest consulta membro.
type GetMemberRequest struct {
	TargetID uuid.UUID
}

func (GetMemberRequest) RequiresAuth() {}

func (GetMemberRequest) Rule() pipeline.Rule {
	return pipeline.Authenticated()
}

// GetMember devolve membro visível ao ator (posição igual ou inferior).
func (s *TeamService) GetMember(ctx context.Context, prin principal.Info, req GetMemberRequest) pipeline.Result[repo.User] {
	return pipeline.Execute(ctx, s.pipeline, prin, req, s.getMember)
}

func (s *TeamService) getMember(ctx context.Context, actx *pipeline.AuthContext, req GetMemberRequest) pipeline.Result[repo.User] {
	target, err := s.repo.GetUserByID(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return pipeline.NotFound[repo.User]()
		}
		return pipeline.Internal[repo.User]()
	}

	if err := permission.CanViewMember(actx.Principal, &target); err != nil {
		return pipeline.Forbidden[repo.User]()
	}
	return pipeline.Ok(target)
}

// ChangeLeaderRequest transfere a liderança da equipe.
type ChangeLeaderRequest struct {
	// TeamID vazio usa a equipe do ator.
	TeamID      uuid.UUID
	NewLeaderID uuid.UUID
}

func (ChangeLeaderRequest) RequiresAuth() {}
func (ChangeLeaderRequest) Mutates()      {}

func (ChangeLeaderRequest) Rule() pipeline.Rule {
	return pipeline.Authenticated()
}

// ChangeLeader transfere a liderança para um membro da própria equipe.
func (s *TeamService) ChangeLeader(ctx context.Context, prin principal.Info, req ChangeLeaderRequest) pipeline.Result[struct{}] {
	return pipeline.Execute(ctx, s.pipeline, prin, req, s.changeLeader)
}

func (s *TeamService) changeLeader(ctx context.Context, actx *pipeline.AuthContext, req ChangeLeaderRequest) pipeline.Result[struct{}] {
	teamID := req.TeamID
	if teamID == uuid.Nil {
		teamID = actx.Principal.TeamID
	}

	team, err := s.repo.GetTeamWithMembers(ctx, teamID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return pipeline.NotFound[struct{}]()
		}
		return pipeline.Internal[struct{}]()
	}

	if err := permission.CanChangeLeader(actx.Principal, &team, req.NewLeaderID); err != nil {
		return pipeline.Forbidden[struct{}]()
	}

	if err := s.repo.UpdateTeamLeader(ctx, team.ID, req.NewLeaderID); err != nil {
		return pipeline.Internal[struct{}]()
	}

	s.publish(ctx, event.New(event.TypeLeaderChanged, map[string]any{
		"team_id":   team.ID.String(),
		"leader_id": req.NewLeaderID.String(),
	}))
	return pipeline.Ok(struct{}{})
}

// ChangePositionRequest move membro para nova posição.
type ChangePositionRequest struct {
	TargetID    uuid.UUID
	NewPosition int
}

func (ChangePositionRequest) RequiresAuth() {}
func (ChangePositionRequest) Mutates()      {}

func (ChangePositionRequest) Rule() pipeline.Rule {
	return pipeline.Authenticated()
}

// ChangePosition move membro dentro da faixa da equipe, desde que o ator
// supere a posição atual e a pretendida.
func (s *TeamService) ChangePosition(ctx context.Context, prin principal.Info, req ChangePositionRequest) pipeline.Result[struct{}] {
	return pipeline.Execute(ctx, s.pipeline, prin, req, s.changePosition)
}

func (s *TeamService) changePosition(ctx context.Context, actx *pipeline.AuthContext, req ChangePositionRequest) pipeline.Result[struct{}] {
	target, err := s.repo.GetUserByID(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return pipeline.NotFound[struct{}]()
		}
		return pipeline.Internal[struct{}]()
	}

	team, err := s.repo.GetTeamByID(ctx, target.TeamID)
	if err != nil {
		return pipeline.Internal[struct{}]()
	}

	if err := permission.CanChangePosition(actx.Principal, &team, &target, req.NewPosition); err != nil {
		return pipeline.Forbidden[struct{}]()
	}

	if err := s.repo.UpdateUserPosition(ctx, target.ID, req.NewPosition); err != nil {
		return pipeline.Internal[struct{}]()
	}
	return pipeline.Ok(struct{}{})
}

// UpdatePositionRangeRequest altera a faixa de posições da equipe.
type UpdatePositionRangeRequest struct {
	MinPosition int
	MaxPosition int
}

func (UpdatePositionRangeRequest) RequiresAuth() {}
func (UpdatePositionRangeRequest) RequiresTeam() {}
func (UpdatePositionRangeRequest) Mutates()      {}

func (UpdatePositionRangeRequest) Rule() pipeline.Rule {
	return pipeline.Any(pipeline.TeamLeader(), pipeline.SuperMinimum())
}

// UpdatePositionRange redefine a faixa preservando as posições atuais de
// todos os membros (validação antes do commit).
func (s *TeamService) UpdatePositionRange(ctx context.Context, prin principal.Info, req UpdatePositionRangeRequest) pipeline.Result[repo.Team] {
	return pipeline.Execute(ctx, s.pipeline, prin, req, s.updatePositionRange)
}

func (s *TeamService) updatePositionRange(ctx context.Context, actx *pipeline.AuthContext, req UpdatePositionRangeRequest) pipeline.Result[repo.Team] {
	team := actx.Team

	if req.MinPosition > req.MaxPosition {
		return pipeline.BadRequest[repo.Team]("faixa de posições inválida")
	}
	for _, member := range team.Members {
		if member.Position < req.MinPosition || member.Position > req.MaxPosition {
			return pipeline.BadRequest[repo.Team]("faixa exclui posições de membros atuais")
		}
	}

	if err := s.repo.UpdateTeamPositionRange(ctx, team.ID, req.MinPosition, req.MaxPosition); err != nil {
		return pipeline.Internal[repo.Team]()
	}

	updated := *team
	updated.MinPosition = req.MinPosition
	updated.MaxPosition = req.MaxPosition
	return pipeline.Ok(updated)
}

func (s *TeamService) publish(ctx context.Context, evt event.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("type", evt.Type).Msg("evento não publicado")
	}
}
