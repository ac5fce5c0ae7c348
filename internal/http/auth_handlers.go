package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/identidade/internal/http/middleware"
	"github.com/gestaozabele/identidade/internal/repo"
	"github.com/gestaozabele/identidade/internal/service"
	"github.com/gestaozabele/identidade/internal/twofactor"
)

// AuthHandler expõe o fluxo de autenticação: login, segundo fator,
// refresh, confirmação de e-mail e encerramento de conta.
type AuthHandler struct {
	service  *service.AuthService
	validate *validator.Validate
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{service: svc, validate: validate}
}

// RegisterPublic registra as rotas acessíveis sem token de acesso.
func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/refresh", h.handleRefresh)
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/2fa/verify", h.handleVerifyTwoFactor)
	r.Post("/auth/2fa/resend", h.handleResendTwoFactor)
	r.Post("/auth/confirm-email", h.handleConfirmEmail)
	r.Get("/.well-known/jwks.json", h.handleJWKS)
}

// RegisterProtected registra as rotas que exigem token de acesso válido.
func (h *AuthHandler) RegisterProtected(r chi.Router) {
	r.Post("/auth/2fa/enable", h.handleEnableTwoFactor)
	r.Post("/auth/2fa/disable", h.handleDisableTwoFactor)
	r.Delete("/auth/account", h.handleCloseAccount)
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	// Provider força canal de 2FA diferente do cadastrado.
	Provider string `json:"provider" validate:"omitempty,oneof=SMS EMAIL WHATSAPP AUTHENTICATOR"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	opts := service.SignInOptions{
		DeviceID:       deviceIDFromRequest(r),
		TrustedChannel: r.Header.Get("X-Client-Channel") == "native-app",
		Provider:       repo.TwoFactorProvider(req.Provider),
	}

	result, err := h.service.SignIn(r.Context(), req.Identifier, req.Password, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch result.Status {
	case service.SignInEmailConfirmationRequired:
		WriteJSON(w, http.StatusOK, map[string]any{
			"status": "email_confirmation_required",
			"email":  result.Email,
		})
	case service.SignInTwoFactorRequired:
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":        "two_factor_required",
			"pending_token": result.PendingToken,
			"provider":      result.Provider,
		})
	default:
		WriteJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"tokens": result.Tokens,
		})
	}
}

type verifyTwoFactorRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required"`
	RememberMe   bool   `json:"remember_me"`
}

func (h *AuthHandler) handleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if !h.decode(w, r, &req) {
		return
	}

	pkg, err := h.service.VerifyTwoFactor(r.Context(), req.PendingToken, req.Code, deviceIDFromRequest(r), req.RememberMe)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "tokens": pkg})
}

type resendTwoFactorRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
}

func (h *AuthHandler) handleResendTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req resendTwoFactorRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, provider, err := h.service.ResendTwoFactor(r.Context(), req.PendingToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"pending_token": token,
		"provider":      provider,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pkg, err := h.service.Refresh(r.Context(), req.RefreshToken, deviceIDFromRequest(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "tokens": pkg})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type confirmEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *AuthHandler) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *AuthHandler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(h.service.JWT().JWKS())
}

type enableTwoFactorRequest struct {
	Provider string `json:"provider" validate:"required,oneof=SMS EMAIL WHATSAPP AUTHENTICATOR"`
}

func (h *AuthHandler) handleEnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req enableTwoFactorRequest
	if !h.decode(w, r, &req) {
		return
	}

	prin := middleware.GetPrincipal(r.Context())
	result, err := h.service.EnableTwoFactor(r.Context(), prin, repo.TwoFactorProvider(req.Provider))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	payload := map[string]any{"provider": result.Provider}
	if result.OtpauthURL != "" {
		payload["otpauth_url"] = result.OtpauthURL
	}
	WriteJSON(w, http.StatusOK, payload)
}

func (h *AuthHandler) handleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	prin := middleware.GetPrincipal(r.Context())
	if err := h.service.DisableTwoFactor(r.Context(), prin); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *AuthHandler) handleCloseAccount(w http.ResponseWriter, r *http.Request) {
	prin := middleware.GetPrincipal(r.Context())
	if err := h.service.CloseAccount(r.Context(), prin); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// decode lê e valida o corpo JSON; responde VALIDATION quando inválido.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
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

func deviceIDFromRequest(r *http.Request) *string {
	device := strings.TrimSpace(r.Header.Get("X-Device-ID"))
	if device == "" {
		return nil
	}
	return &device
}

// writeServiceError normaliza erros de domínio no envelope HTTP.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrRefreshInvalid),
		errors.Is(err, twofactor.ErrPendingNotFound):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error())
	case errors.Is(err, service.ErrRefreshReused),
		errors.Is(err, service.ErrLeaderMustTransfer):
		WriteError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, service.ErrRefreshDisabled):
		WriteError(w, http.StatusForbidden, "DISABLED", err.Error())
	case errors.Is(err, service.ErrConfirmInvalid),
		errors.Is(err, twofactor.ErrNoProviderConfigured),
		errors.Is(err, twofactor.ErrUnknownProvider):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, repo.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado")
	default:
		log.Error().Err(err).Msg("erro inesperado no fluxo de autenticação")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
	}
}
