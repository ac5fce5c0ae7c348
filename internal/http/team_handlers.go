package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gestaozabele/identidade/internal/http/middleware"
	"github.com/gestaozabele/identidade/internal/pipeline"
	"github.com/gestaozabele/identidade/internal/repo"
	"github.com/gestaozabele/identidade/internal/service"
)

// TeamHandler expõe a gestão de equipe: membros, liderança e faixa de
// posições. Toda autorização acontece no pipeline do serviço; aqui apenas
// traduzimos HTTP para comandos.
type TeamHandler struct {
	service  *service.TeamService
	validate *validator.Validate
}

func NewTeamHandler(svc *service.TeamService, validate *validator.Validate) *TeamHandler {
	return &TeamHandler{service: svc, validate: validate}
}

func (h *TeamHandler) RegisterRoutes(r chi.Router) {
	r.Route("/teams", func(r chi.Router) {
		r.Post("/members", h.handleAddMember)
		r.Get("/members/{id}", h.handleGetMember)
		r.Patch("/members/{id}", h.handleUpdateMember)
		r.Delete("/members/{id}", h.handleDeleteMember)
		r.Post("/members/{id}/position", h.handleChangePosition)
		r.Post("/leader", h.handleChangeLeader)
		r.Put("/position-range", h.handleUpdatePositionRange)
	})
}

// memberView omite campos sensíveis do registro de usuário.
type memberView struct {
	ID                uuid.UUID              `json:"id"`
	TeamID            uuid.UUID              `json:"team_id"`
	Name              string                 `json:"name"`
	Username          string                 `json:"username,omitempty"`
	Email             string                 `json:"email"`
	PhoneNumber       *string                `json:"phone_number,omitempty"`
	Position          int                    `json:"position"`
	EmailConfirmed    bool                   `json:"email_confirmed"`
	TwoFactorEnabled  bool                   `json:"two_factor_enabled"`
	TwoFactorProvider repo.TwoFactorProvider `json:"two_factor_provider,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

func newMemberView(u repo.User) memberView {
	return memberView{
		ID:                u.ID,
		TeamID:            u.TeamID,
		Name:              u.Name,
		Username:          u.Username,
		Email:             u.Email,
		PhoneNumber:       u.PhoneNumber,
		Position:          u.Position,
		EmailConfirmed:    u.EmailConfirmed,
		TwoFactorEnabled:  u.TwoFactorEnabled,
		TwoFactorProvider: u.TwoFactorProvider,
		CreatedAt:         u.CreatedAt,
	}
}

type teamView struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	MinPosition int        `json:"min_position"`
	MaxPosition int        `json:"max_position"`
	LeaderID    *uuid.UUID `json:"leader_id,omitempty"`
}

func newTeamView(t repo.Team) teamView {
	return teamView{
		ID:          t.ID,
		Name:        t.Name,
		Type:        string(t.Type),
		MinPosition: t.MinPosition,
		MaxPosition: t.MaxPosition,
		LeaderID:    t.LeaderID,
	}
}

type addMemberBody struct {
	Name        string  `json:"name" validate:"required"`
	Username    string  `json:"username"`
	Email       string  `json:"email" validate:"required,email"`
	PhoneNumber *string `json:"phone_number"`
	Password    string  `json:"password" validate:"required,min=8"`
	Position    int     `json:"position" validate:"gte=0"`
}

func (h *TeamHandler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var body addMemberBody
	if !h.decode(w, r, &body) {
		return
	}

	result := h.service.AddMember(r.Context(), middleware.GetPrincipal(r.Context()), service.AddMemberRequest{
		Name:        body.Name,
		Username:    body.Username,
		Email:       body.Email,
		PhoneNumber: body.PhoneNumber,
		Password:    body.Password,
		Position:    body.Position,
	})
	writeMemberResult(w, result)
}

func (h *TeamHandler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	result := h.service.GetMember(r.Context(), middleware.GetPrincipal(r.Context()), service.GetMemberRequest{TargetID: targetID})
	writeMemberResult(w, result)
}

type updateMemberBody struct {
	Name        string  `json:"name" validate:"required"`
	PhoneNumber *string `json:"phone_number"`
}

func (h *TeamHandler) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body updateMemberBody
	if !h.decode(w, r, &body) {
		return
	}

	result := h.service.UpdateMember(r.Context(), middleware.GetPrincipal(r.Context()), service.UpdateMemberRequest{
		TargetID:    targetID,
		Name:        body.Name,
		PhoneNumber: body.PhoneNumber,
	})
	writeMemberResult(w, result)
}

func (h *TeamHandler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	result := h.service.DeleteMember(r.Context(), middleware.GetPrincipal(r.Context()), service.DeleteMemberRequest{TargetID: targetID})
	if result.OK() {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	WriteResult(w, result)
}

type changePositionBody struct {
	Position int `json:"position" validate:"gte=0"`
}

func (h *TeamHandler) handleChangePosition(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body changePositionBody
	if !h.decode(w, r, &body) {
		return
	}

	result := h.service.ChangePosition(r.Context(), middleware.GetPrincipal(r.Context()), service.ChangePositionRequest{
		TargetID:    targetID,
		NewPosition: body.Position,
	})
	if result.OK() {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	WriteResult(w, result)
}

type changeLeaderBody struct {
	// TeamID vazio transfere a liderança da equipe do próprio ator.
	TeamID      string `json:"team_id" validate:"omitempty,uuid4"`
	NewLeaderID string `json:"new_leader_id" validate:"required,uuid4"`
}

func (h *TeamHandler) handleChangeLeader(w http.ResponseWriter, r *http.Request) {
	var body changeLeaderBody
	if !h.decode(w, r, &body) {
		return
	}

	req := service.ChangeLeaderRequest{NewLeaderID: uuid.MustParse(body.NewLeaderID)}
	if body.TeamID != "" {
		req.TeamID = uuid.MustParse(body.TeamID)
	}

	result := h.service.ChangeLeader(r.Context(), middleware.GetPrincipal(r.Context()), req)
	if result.OK() {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	WriteResult(w, result)
}

type positionRangeBody struct {
	MinPosition int `json:"min_position" validate:"gte=0"`
	MaxPosition int `json:"max_position" validate:"gte=0"`
}

func (h *TeamHandler) handleUpdatePositionRange(w http.ResponseWriter, r *http.Request) {
	var body positionRangeBody
	if !h.decode(w, r, &body) {
		return
	}

	result := h.service.UpdatePositionRange(r.Context(), middleware.GetPrincipal(r.Context()), service.UpdatePositionRangeRequest{
		MinPosition: body.MinPosition,
		MaxPosition: body.MaxPosition,
	})
	if result.OK() {
		WriteJSON(w, http.StatusOK, newTeamView(result.Value))
		return
	}
	WriteResult(w, result)
}

func writeMemberResult(w http.ResponseWriter, result pipeline.Result[repo.User]) {
	if result.OK() {
		WriteJSON(w, http.StatusOK, newMemberView(result.Value))
		return
	}
	WriteResult(w, result)
}

func (h *TeamHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "dados obrigatórios ausentes ou inválidos")
		return false
	}
	return true
}

func (h *TeamHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido")
		return uuid.Nil, false
	}
	return id, true
}
