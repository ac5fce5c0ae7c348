package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims representa as informações presentes em um JWT de acesso.
type Claims struct {
	Email             string `json:"email,omitempty"`
	Username          string `json:"username,omitempty"`
	TeamID            string `json:"team_id,omitempty"`
	TeamPosition      int    `json:"team_position,omitempty"`
	TeamType          string `json:"team_type,omitempty"`
	Leader            bool   `json:"leader,omitempty"`
	TwoFactorVerified bool   `json:"two_factor_verified,omitempty"`
	Application       string `json:"application,omitempty"`
	jwt.RegisteredClaims
}

// ExtraClaimsProvider permite anexar claims arbitrárias após a montagem padrão.
// Claims registradas (sub, exp, iat, jti, aud, iss) nunca são sobrescritas.
type ExtraClaimsProvider interface {
	ExtraClaims(ctx context.Context, subject uuid.UUID) (map[string]any, error)
}

// AccessTokenParams agrega os dados embutidos no token de acesso.
type AccessTokenParams struct {
	Subject           uuid.UUID
	Email             string
	Username          string
	TeamID            uuid.UUID
	TeamPosition      int
	TeamType          string
	Leader            bool
	TwoFactorVerified bool
}

// Options configura o gerenciador de JWT.
type Options struct {
	// Secret habilita HS256. Mutuamente exclusivo com RSAPrivateKey.
	Secret string
	// RSAPrivateKey habilita RS256 e a publicação de JWKS.
	RSAPrivateKey *rsa.PrivateKey
	AccessTTL     time.Duration
	Issuer        string
	// Application é o marcador de aplicação embutido em todo token.
	Application string
	Extra       ExtraClaimsProvider
}

// JWTManager encapsula geração e validação de tokens de acesso.
type JWTManager struct {
	method      jwt.SigningMethod
	secret      []byte
	privateKey  *rsa.PrivateKey
	keyID       string
	accessTTL   time.Duration
	issuer      string
	application string
	extra       ExtraClaimsProvider
}

var reservedClaims = map[string]struct{}{
	"sub": {}, "aud": {}, "exp": {}, "iat": {}, "jti": {}, "iss": {},
}

// NewJWTManager cria o gerenciador com HS256 (segredo) ou RS256 (chave RSA).
func NewJWTManager(opts Options) (*JWTManager, error) {
	m := &JWTManager{
		accessTTL:   opts.AccessTTL,
		issuer:      opts.Issuer,
		application: opts.Application,
		extra:       opts.Extra,
	}

	switch {
	case opts.RSAPrivateKey != nil:
		m.method = jwt.SigningMethodRS256
		m.privateKey = opts.RSAPrivateKey
		kid, err := computeKeyID(&opts.RSAPrivateKey.PublicKey)
		if err != nil {
			return nil, err
		}
		m.keyID = kid
	case opts.Secret != "":
		m.method = jwt.SigningMethodHS256
		m.secret = []byte(opts.Secret)
	default:
		return nil, errors.New("jwt: segredo ou chave RSA obrigatórios")
	}

	return m, nil
}

// AccessTTL devolve a validade configurada para tokens de acesso.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// GenerateAccessToken cria um JWT com as claims do principal.
func (m *JWTManager) GenerateAccessToken(ctx context.Context, params AccessTokenParams) (string, time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(m.accessTTL)

	claims := jwt.MapClaims{
		"sub": params.Subject.String(),
		"exp": expires.Unix(),
		"iat": now.Unix(),
		"jti": uuid.NewString(),
	}
	if m.issuer != "" {
		claims["iss"] = m.issuer
	}
	if params.Email != "" {
		claims["email"] = params.Email
	}
	if params.Username != "" {
		claims["username"] = params.Username
	}
	if params.TeamID != uuid.Nil {
		claims["team_id"] = params.TeamID.String()
		claims["team_position"] = params.TeamPosition
		claims["team_type"] = params.TeamType
	}
	if params.Leader {
		claims["leader"] = true
	}
	if params.TwoFactorVerified {
		claims["two_factor_verified"] = true
	}
	if m.application != "" {
		claims["application"] = m.application
	}

	if m.extra != nil {
		extras, err := m.extra.ExtraClaims(ctx, params.Subject)
		if err != nil {
			return "", time.Time{}, err
		}
		for key, value := range extras {
			if _, reserved := reservedClaims[key]; reserved {
				continue
			}
			claims[key] = value
		}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.keyID != "" {
		token.Header["kid"] = m.keyID
	}

	signed, err := token.SignedString(m.signingKey())
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expires, nil
}

// ParseAndValidate verifica assinatura e expiração, devolvendo as claims.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{m.method.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.verificationKey(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}

	return claims, nil
}

func (m *JWTManager) signingKey() any {
	if m.privateKey != nil {
		return m.privateKey
	}
	return m.secret
}

func (m *JWTManager) verificationKey() any {
	if m.privateKey != nil {
		return &m.privateKey.PublicKey
	}
	return m.secret
}
