package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/event"
	"github.com/gestaozabele/identidade/internal/principal"
	"github.com/gestaozabele/identidade/internal/repo"
	"github.com/gestaozabele/identidade/internal/twofactor"
)

var (
	// ErrInvalidCredentials indica falha na autenticação. A mesma resposta
	// cobre identificador desconhecido e senha incorreta, por política
	// anti-enumeração.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrRefreshInvalid indica refresh token ausente, expirado ou desconhecido.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrRefreshReused indica reuso de token já rotacionado; a família inteira
	// é revogada como resposta.
	ErrRefreshReused = errors.New("refresh token já utilizado")
	// ErrRefreshDisabled indica refresh tokens desligados por configuração.
	ErrRefreshDisabled = errors.New("refresh tokens desabilitados")
	// ErrInvalidCode indica código de segundo fator incorreto ou expirado.
	ErrInvalidCode = errors.New("código de verificação inválido")
	// ErrConfirmInvalid indica token de confirmação de e-mail inválido.
	ErrConfirmInvalid = errors.New("token de confirmação inválido")
	// ErrLeaderMustTransfer impede encerramento de conta de líder ativo.
	ErrLeaderMustTransfer = errors.New("liderança deve ser transferida antes")
)

type authRepository interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (repo.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error)
	GetTeamByID(ctx context.Context, id uuid.UUID) (repo.Team, error)
	SetEmailConfirmed(ctx context.Context, id uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.RefreshToken, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, tokenHash string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeRefreshFamily(ctx context.Context, familyID uuid.UUID) error
	RevokeRefreshTokensByUser(ctx context.Context, userID uuid.UUID) error
	RevokeRefreshTokensByDevice(ctx context.Context, userID uuid.UUID, deviceID string) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra autenticação, emissão e rotação de tokens.
type AuthService struct {
	repo           authRepository
	redis          redisCommander
	jwt            *auth.JWTManager
	twofactor      *twofactor.Service
	pending        *twofactor.PendingCache
	events         event.Publisher
	tx             txRunner
	refreshTTL     time.Duration
	refreshEnabled bool
	confirmTTL     time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(r authRepository, rdb redisCommander, jwtMgr *auth.JWTManager, tf *twofactor.Service, pending *twofactor.PendingCache, events event.Publisher, tx txRunner, refreshTTL, confirmTTL time.Duration, refreshEnabled bool) *AuthService {
	return &AuthService{
		repo:           r,
		redis:          rdb,
		jwt:            jwtMgr,
		twofactor:      tf,
		pending:        pending,
		events:         events,
		tx:             tx,
		refreshTTL:     refreshTTL,
		refreshEnabled: refreshEnabled,
		confirmTTL:     confirmTTL,
	}
}

// JWT expõe o gerenciador de tokens (útil em middlewares e no JWKS).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// JwtPackage é o resultado entregue ao cliente autenticado.
type JwtPackage struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SignInStatus identifica o desfecho do login.
type SignInStatus int

const (
	// SignInTokens: autenticação completa, tokens emitidos.
	SignInTokens SignInStatus = iota
	// SignInEmailConfirmationRequired: conta ainda não confirmou e-mail.
	SignInEmailConfirmationRequired
	// SignInTwoFactorRequired: senha correta, aguardando segundo fator.
	SignInTwoFactorRequired
)

// SignInResult representa o retorno do login.
type SignInResult struct {
	Status SignInStatus
	Tokens *JwtPackage
	// Email é preenchido quando a confirmação de e-mail está pendente.
	Email string
	// PendingToken retoma o login nos endpoints de verificação/reenvio de 2FA.
	PendingToken string
	Provider     repo.TwoFactorProvider
}

// SignInOptions parametriza o login.
type SignInOptions struct {
	DeviceID *string
	// TrustedChannel pula o segundo fator para canais nativos pré-confiáveis.
	TrustedChannel bool
	// Provider força canal de 2FA diferente do salvo no cadastro.
	Provider repo.TwoFactorProvider
}

// SignIn executa a máquina de estados do login: busca → confirmação de
// e-mail → senha → segundo fator → emissão. Cada falha é terminal; o
// chamador reinvoca o fluxo adequado para continuar.
func (s *AuthService) SignIn(ctx context.Context, identifier, password string, opts SignInOptions) (*SignInResult, error) {
	user, err := s.repo.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: identificador desconhecido")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// A confirmação de e-mail precede a checagem de senha: conta não
	// confirmada não descobre sequer se a senha estava certa.
	if !user.EmailConfirmed {
		if err := s.requestEmailConfirmation(ctx, &user); err != nil {
			return nil, err
		}
		return &SignInResult{Status: SignInEmailConfirmationRequired, Email: user.Email}, nil
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := auth.VerifyPassword(password, *user.PasswordHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled && !opts.TrustedChannel {
		provider, err := s.twofactor.SendOtp(ctx, &user, opts.Provider)
		if err != nil {
			return nil, err
		}
		token, err := s.pending.Create(ctx, user.ID, provider)
		if err != nil {
			return nil, err
		}
		return &SignInResult{Status: SignInTwoFactorRequired, PendingToken: token, Provider: provider}, nil
	}

	pkg, err := s.issueTokens(ctx, &user, false, opts.DeviceID, uuid.Nil, s.refreshEnabled)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Status: SignInTokens, Tokens: pkg}, nil
}

// VerifyTwoFactor conclui o login pendente. O token pendente é a única
// capacidade exigida; o usuário e o canal efetivo são recuperados a partir
// dele. Código errado preserva o token: a remoção acontece apenas na
// verificação bem-sucedida.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, pendingToken, code string, deviceID *string, rememberMe bool) (*JwtPackage, error) {
	userID, provider, err := s.pending.Peek(ctx, pendingToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, twofactor.ErrPendingNotFound
		}
		return nil, err
	}

	ok, err := s.twofactor.VerifyCode(ctx, &user, provider, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	if err := s.pending.Delete(ctx, pendingToken); err != nil {
		return nil, err
	}

	withRefresh := s.refreshEnabled && rememberMe
	return s.issueTokens(ctx, &user, true, deviceID, uuid.Nil, withRefresh)
}

// ResendTwoFactor reemite o código pelo mesmo canal e troca o token pendente
// por um novo. O token antigo só morre depois que o reenvio funcionou.
func (s *AuthService) ResendTwoFactor(ctx context.Context, pendingToken string) (string, repo.TwoFactorProvider, error) {
	userID, prevProvider, err := s.pending.Peek(ctx, pendingToken)
	if err != nil {
		return "", repo.ProviderNone, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", repo.ProviderNone, twofactor.ErrPendingNotFound
		}
		return "", repo.ProviderNone, err
	}

	provider, err := s.twofactor.SendOtp(ctx, &user, prevProvider)
	if err != nil {
		return "", repo.ProviderNone, err
	}

	if err := s.pending.Delete(ctx, pendingToken); err != nil {
		return "", repo.ProviderNone, err
	}
	token, err := s.pending.Create(ctx, user.ID, provider)
	if err != nil {
		return "", repo.ProviderNone, err
	}
	return token, provider, nil
}

// Refresh troca refresh token válido por novos tokens. A rotação é uma
// escrita condicional: sob concorrência, exatamente uma chamada vence e as
// demais recebem ErrRefreshReused.
func (s *AuthService) Refresh(ctx context.Context, rawToken string, deviceID *string) (*JwtPackage, error) {
	if !s.refreshEnabled {
		return nil, ErrRefreshDisabled
	}
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashOpaqueToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revoked {
		return nil, s.handleRefreshReuse(ctx, &record)
	}
	if record.IsExpired(time.Now().UTC()) {
		return nil, ErrRefreshInvalid
	}

	if deviceID == nil {
		deviceID = record.DeviceID
	}

	// Revogação do token antigo e inserção do sucessor compartilham a mesma
	// transação: uma falha no meio desfaz a revogação e a sessão sobrevive.
	var pkg *JwtPackage
	txErr := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.RotateRefreshToken(ctx, hash); err != nil {
			return err
		}

		user, err := s.repo.GetUserByID(ctx, record.UserID)
		if err != nil {
			return err
		}

		// O estado de segundo fator da sessão original é preservado: refresh
		// nunca reexecuta o 2FA.
		pkg, err = s.issueTokens(ctx, &user, record.TwoFactorVerified, deviceID, record.FamilyID, true)
		return err
	})
	if txErr != nil {
		if errors.Is(txErr, repo.ErrAlreadyRotated) {
			return nil, s.handleRefreshReuse(ctx, &record)
		}
		if errors.Is(txErr, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, txErr
	}
	return pkg, nil
}

// Logout revoga o refresh token apresentado.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashOpaqueToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return nil
}

// ConfirmEmail consome o token de confirmação e marca o e-mail confirmado.
func (s *AuthService) ConfirmEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return ErrConfirmInvalid
	}

	key := confirmKey(auth.HashOpaqueToken(rawToken))
	value, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrConfirmInvalid
	}
	if err != nil {
		return err
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		return ErrConfirmInvalid
	}
	if err := s.repo.SetEmailConfirmed(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrConfirmInvalid
		}
		return err
	}

	s.publish(ctx, event.New(event.TypeEmailConfirmed, map[string]any{
		"user_id": userID.String(),
	}))
	return nil
}

// CloseAccount encerra a própria conta. Líderes precisam transferir a
// liderança antes; todas as sessões do usuário são revogadas.
func (s *AuthService) CloseAccount(ctx context.Context, prin principal.Info) error {
	user, err := s.repo.GetUserByID(ctx, prin.UserID)
	if err != nil {
		return err
	}

	team, err := s.repo.GetTeamByID(ctx, user.TeamID)
	if err != nil {
		return err
	}
	if team.LeaderID != nil && *team.LeaderID == user.ID {
		return ErrLeaderMustTransfer
	}

	if err := s.repo.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	if err := s.repo.RevokeRefreshTokensByUser(ctx, user.ID); err != nil {
		return err
	}

	s.publish(ctx, event.New(event.TypeAccountClosed, map[string]any{
		"user_id": user.ID.String(),
		"team_id": user.TeamID.String(),
	}))
	return nil
}

// EnableTwoFactor ativa o segundo fator para a própria conta.
func (s *AuthService) EnableTwoFactor(ctx context.Context, prin principal.Info, provider repo.TwoFactorProvider) (*twofactor.EnableResult, error) {
	user, err := s.repo.GetUserByID(ctx, prin.UserID)
	if err != nil {
		return nil, err
	}
	return s.twofactor.Enable(ctx, &user, provider)
}

// DisableTwoFactor desliga o segundo fator da própria conta.
func (s *AuthService) DisableTwoFactor(ctx context.Context, prin principal.Info) error {
	user, err := s.repo.GetUserByID(ctx, prin.UserID)
	if err != nil {
		return err
	}
	return s.twofactor.Disable(ctx, &user)
}

func (s *AuthService) issueTokens(ctx context.Context, user *repo.User, twoFactorVerified bool, deviceID *string, familyID uuid.UUID, withRefresh bool) (*JwtPackage, error) {
	team, err := s.repo.GetTeamByID(ctx, user.TeamID)
	if err != nil {
		return nil, err
	}
	leader := team.LeaderID != nil && *team.LeaderID == user.ID

	access, expires, err := s.jwt.GenerateAccessToken(ctx, auth.AccessTokenParams{
		Subject:           user.ID,
		Email:             user.Email,
		Username:          user.Username,
		TeamID:            team.ID,
		TeamPosition:      user.Position,
		TeamType:          string(team.Type),
		Leader:            leader,
		TwoFactorVerified: twoFactorVerified,
	})
	if err != nil {
		return nil, err
	}

	pkg := &JwtPackage{AccessToken: access, ExpiresAt: expires}
	if !withRefresh {
		return pkg, nil
	}

	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	if familyID == uuid.Nil {
		// Login novo no mesmo dispositivo substitui a sessão anterior: fica
		// no máximo um token ativo por par usuário e dispositivo.
		if deviceID != nil {
			if err := s.repo.RevokeRefreshTokensByDevice(ctx, user.ID, *deviceID); err != nil {
				return nil, err
			}
		}
		familyID = uuid.New()
	}

	now := time.Now().UTC()
	if _, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:                uuid.New(),
		UserID:            user.ID,
		FamilyID:          familyID,
		TokenHash:         hash,
		DeviceID:          deviceID,
		TwoFactorVerified: twoFactorVerified,
		ExpiresAt:         now.Add(s.refreshTTL),
		CreatedAt:         now,
	}); err != nil {
		return nil, err
	}

	pkg.RefreshToken = raw
	return pkg, nil
}

// handleRefreshReuse responde a reuso de token rotacionado: revoga a família
// inteira e publica o evento de anomalia.
func (s *AuthService) handleRefreshReuse(ctx context.Context, record *repo.RefreshToken) error {
	if err := s.repo.RevokeRefreshFamily(ctx, record.FamilyID); err != nil {
		log.Error().Err(err).Msg("refresh: revogação de família falhou")
	}
	s.publish(ctx, event.New(event.TypeRefreshReuseDetected, map[string]any{
		"user_id":   record.UserID.String(),
		"family_id": record.FamilyID.String(),
	}))
	log.Warn().Str("user_id", record.UserID.String()).Msg("refresh: reuso de token detectado")
	return ErrRefreshReused
}

func (s *AuthService) requestEmailConfirmation(ctx context.Context, user *repo.User) error {
	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, confirmKey(hash), user.ID.String(), s.confirmTTL).Err(); err != nil {
		return err
	}

	s.publish(ctx, event.New(event.TypeEmailConfirmationRequested, map[string]any{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"token":   raw,
	}))
	return nil
}

func (s *AuthService) publish(ctx context.Context, evt event.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("type", evt.Type).Msg("evento não publicado")
	}
}

func confirmKey(hash string) string {
	return fmt.Sprintf("confirm:%s", hash)
}
