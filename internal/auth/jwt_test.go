package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(Options{
		Secret:      "segredo-de-teste",
		AccessTTL:   15 * time.Minute,
		Issuer:      "identidade-test",
		Application: "app-teste",
	})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

func TestGenerateAndParseRoundTrip(t *testing.T) {
	m := newTestManager(t)
	subject := uuid.New()
	teamID := uuid.New()

	token, expires, err := m.GenerateAccessToken(context.Background(), AccessTokenParams{
		Subject:           subject,
		Email:             "ana@example.com",
		Username:          "ana",
		TeamID:            teamID,
		TeamPosition:      7,
		TeamType:          "CUSTOMER",
		Leader:            true,
		TwoFactorVerified: true,
	})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatal("expiração deveria estar no futuro")
	}

	claims, err := m.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != subject.String() {
		t.Fatalf("subject %q, esperado %q", claims.Subject, subject)
	}
	if claims.TeamID != teamID.String() || claims.TeamPosition != 7 || claims.TeamType != "CUSTOMER" {
		t.Fatal("claims de equipe não preservadas")
	}
	if !claims.Leader || !claims.TwoFactorVerified {
		t.Fatal("flags não preservadas")
	}
	if claims.Application != "app-teste" {
		t.Fatalf("application %q", claims.Application)
	}
	if claims.Issuer != "identidade-test" {
		t.Fatalf("issuer %q", claims.Issuer)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.GenerateAccessToken(context.Background(), AccessTokenParams{Subject: uuid.New()})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	other, err := NewJWTManager(Options{Secret: "outro-segredo", AccessTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	if _, err := other.ParseAndValidate(token); err == nil {
		t.Fatal("assinatura de outro segredo deveria ser rejeitada")
	}

	if _, err := m.ParseAndValidate(token + "x"); err == nil {
		t.Fatal("token adulterado deveria ser rejeitado")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m, err := NewJWTManager(Options{Secret: "segredo", AccessTTL: -time.Minute})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, _, err := m.GenerateAccessToken(context.Background(), AccessTokenParams{Subject: uuid.New()})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := m.ParseAndValidate(token); err == nil {
		t.Fatal("token expirado deveria ser rejeitado")
	}
}

type staticExtra map[string]any

func (e staticExtra) ExtraClaims(ctx context.Context, subject uuid.UUID) (map[string]any, error) {
	return e, nil
}

func TestExtraClaimsCannotOverrideReserved(t *testing.T) {
	subject := uuid.New()
	m, err := NewJWTManager(Options{
		Secret:    "segredo",
		AccessTTL: time.Minute,
		Extra: staticExtra{
			"sub":    "forjado",
			"tenant": "prefeitura-x",
		},
	})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, _, err := m.GenerateAccessToken(context.Background(), AccessTokenParams{Subject: subject})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := m.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != subject.String() {
		t.Fatal("claim extra não pode sobrescrever sub")
	}
}

func TestRequiresKeyMaterial(t *testing.T) {
	if _, err := NewJWTManager(Options{AccessTTL: time.Minute}); err == nil {
		t.Fatal("gerenciador sem segredo e sem chave deveria falhar")
	}
}

func TestJWKSPublishesRSAKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}

	m, err := NewJWTManager(Options{RSAPrivateKey: key, AccessTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	set := m.JWKS()
	if len(set.Keys) != 1 {
		t.Fatalf("esperada 1 chave publicada, vieram %d", len(set.Keys))
	}
	jwk := set.Keys[0]
	if jwk.Kty != "RSA" || jwk.Alg != "RS256" || jwk.Use != "sig" {
		t.Fatalf("metadados inesperados: %+v", jwk)
	}
	if jwk.Kid == "" || jwk.N == "" || jwk.E == "" {
		t.Fatal("componentes da chave ausentes")
	}

	// Tokens RS256 validam com a própria chave pública.
	token, _, err := m.GenerateAccessToken(context.Background(), AccessTokenParams{Subject: uuid.New()})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := m.ParseAndValidate(token); err != nil {
		t.Fatalf("ParseAndValidate RS256: %v", err)
	}
}

func TestJWKSEmptyForHS256(t *testing.T) {
	m := newTestManager(t)
	if len(m.JWKS().Keys) != 0 {
		t.Fatal("HS256 não publica chaves")
	}
}
