package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// GenerateOpaqueToken cria token aleatório opaco e seu hash persistível.
// Usado para refresh tokens, tokens pendentes de 2FA e confirmação de e-mail:
// o valor bruto vai para o cliente, apenas o hash é armazenado.
func GenerateOpaqueToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashOpaqueToken(raw)
	return raw, hashed, nil
}

// HashOpaqueToken produz hash SHA-256 base64url do token bruto.
func HashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
