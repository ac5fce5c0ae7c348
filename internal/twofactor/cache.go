package twofactor

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/repo"
)

// ErrPendingNotFound indica token pendente ausente ou expirado.
var ErrPendingNotFound = errors.New("token pendente inválido ou expirado")

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CodeCache guarda códigos OTP de uso único com TTL fixo.
type CodeCache struct {
	redis redisCommander
	ttl   time.Duration
}

// NewCodeCache cria o cache de códigos.
func NewCodeCache(rdb redisCommander, ttl time.Duration) *CodeCache {
	return &CodeCache{redis: rdb, ttl: ttl}
}

// Store grava o código do usuário, substituindo qualquer código anterior.
func (c *CodeCache) Store(ctx context.Context, userID uuid.UUID, code string) error {
	return c.redis.Set(ctx, otpKey(userID), code, c.ttl).Err()
}

// Consume compara e apaga o código em caso de acerto (uso único). A expiração
// é imposta na leitura: chave ausente equivale a código expirado.
func (c *CodeCache) Consume(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	stored, err := c.redis.Get(ctx, otpKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	if err := c.redis.Del(ctx, otpKey(userID)).Err(); err != nil && err != redis.Nil {
		return false, err
	}
	return true, nil
}

// PendingCache guarda tokens pendentes de 2FA. A chave é o hash do próprio
// token: o token opaco é a única capacidade necessária para retomar o login.
// O valor registra também o canal efetivo do envio, que pode divergir do
// provedor salvo no cadastro quando o login usa override.
type PendingCache struct {
	redis redisCommander
	ttl   time.Duration
}

// NewPendingCache cria o cache de tokens pendentes.
func NewPendingCache(rdb redisCommander, ttl time.Duration) *PendingCache {
	return &PendingCache{redis: rdb, ttl: ttl}
}

// Create emite token pendente para o usuário e devolve o valor bruto.
func (c *PendingCache) Create(ctx context.Context, userID uuid.UUID, provider repo.TwoFactorProvider) (string, error) {
	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	value := fmt.Sprintf("%s|%s", userID, provider)
	if err := c.redis.Set(ctx, pendingKey(hash), value, c.ttl).Err(); err != nil {
		return "", err
	}
	return raw, nil
}

// Peek resolve o token pendente sem apagá-lo. Código errado não destrói a
// capacidade de verificar ou reenviar; a remoção acontece via Delete, após
// verificação bem-sucedida ou reenvio.
func (c *PendingCache) Peek(ctx context.Context, rawToken string) (uuid.UUID, repo.TwoFactorProvider, error) {
	if rawToken == "" {
		return uuid.Nil, repo.ProviderNone, ErrPendingNotFound
	}

	key := pendingKey(auth.HashOpaqueToken(rawToken))
	value, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return uuid.Nil, repo.ProviderNone, ErrPendingNotFound
	}
	if err != nil {
		return uuid.Nil, repo.ProviderNone, err
	}

	parts := strings.SplitN(value, "|", 2)
	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, repo.ProviderNone, ErrPendingNotFound
	}
	provider := repo.ProviderNone
	if len(parts) == 2 {
		provider = repo.TwoFactorProvider(parts[1])
	}
	return userID, provider, nil
}

// Delete apaga o token pendente.
func (c *PendingCache) Delete(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	key := pendingKey(auth.HashOpaqueToken(rawToken))
	if err := c.redis.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GenerateCode produz código numérico aleatório com o tamanho informado.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}

func otpKey(userID uuid.UUID) string {
	return fmt.Sprintf("2fa:otp:%s", userID)
}

func pendingKey(hash string) string {
	return fmt.Sprintf("2fa:pending:%s", hash)
}
