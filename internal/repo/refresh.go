package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const refreshColumns = `
        id, user_id, family_id, token_hash, device_id, two_factor_verified,
        expires_at, created_at, revoked
`

// GetRefreshTokenByHash localiza refresh token pelo hash.
func (r *Repository) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	const query = `
        SELECT ` + refreshColumns + `
        FROM refresh_tokens
        WHERE token_hash = $1
    `

	row := r.db(ctx).QueryRow(ctx, query, tokenHash)
	return scanRefreshToken(row)
}

// InsertRefreshTokenParams agrega campos para inserção.
type InsertRefreshTokenParams struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	FamilyID          uuid.UUID
	TokenHash         string
	DeviceID          *string
	TwoFactorVerified bool
	ExpiresAt         time.Time
	CreatedAt         time.Time
}

// InsertRefreshToken persiste novo refresh token.
func (r *Repository) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (RefreshToken, error) {
	const query = `
        INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, device_id, two_factor_verified, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + refreshColumns + `
    `

	row := r.db(ctx).QueryRow(ctx, query,
		arg.ID, arg.UserID, arg.FamilyID, arg.TokenHash, arg.DeviceID,
		arg.TwoFactorVerified, arg.ExpiresAt, arg.CreatedAt,
	)
	return scanRefreshToken(row)
}

// RotateRefreshToken revoga o token apresentado de forma condicional: apenas
// uma rotação concorrente pode vencer. Quem perder recebe ErrAlreadyRotated.
func (r *Repository) RotateRefreshToken(ctx context.Context, tokenHash string) error {
	const query = `
        UPDATE refresh_tokens
        SET revoked = true
        WHERE token_hash = $1 AND revoked = false
    `

	cmd, err := r.db(ctx).Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyRotated
	}
	return nil
}

// RevokeRefreshToken revoga o token sem exigir estado prévio.
func (r *Repository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	const query = `
        UPDATE refresh_tokens
        SET revoked = true
        WHERE token_hash = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeRefreshFamily revoga toda a cadeia de rotações de uma sessão.
func (r *Repository) RevokeRefreshFamily(ctx context.Context, familyID uuid.UUID) error {
	const query = `
        UPDATE refresh_tokens
        SET revoked = true
        WHERE family_id = $1 AND revoked = false
    `

	_, err := r.db(ctx).Exec(ctx, query, familyID)
	return err
}

// RevokeRefreshTokensByDevice revoga as sessões ativas do usuário em um
// dispositivo: um login novo no aparelho substitui a sessão anterior.
func (r *Repository) RevokeRefreshTokensByDevice(ctx context.Context, userID uuid.UUID, deviceID string) error {
	const query = `
        UPDATE refresh_tokens
        SET revoked = true
        WHERE user_id = $1 AND device_id = $2 AND revoked = false
    `

	_, err := r.db(ctx).Exec(ctx, query, userID, deviceID)
	return err
}

// RevokeRefreshTokensByUser revoga todas as sessões do usuário (logout global,
// encerramento de conta).
func (r *Repository) RevokeRefreshTokensByUser(ctx context.Context, userID uuid.UUID) error {
	const query = `
        UPDATE refresh_tokens
        SET revoked = true
        WHERE user_id = $1 AND revoked = false
    `

	_, err := r.db(ctx).Exec(ctx, query, userID)
	return err
}

func scanRefreshToken(row pgx.Row) (RefreshToken, error) {
	var t RefreshToken
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.FamilyID,
		&t.TokenHash,
		&t.DeviceID,
		&t.TwoFactorVerified,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.Revoked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RefreshToken{}, ErrNotFound
		}
		return RefreshToken{}, err
	}
	return t, nil
}
