package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/identidade/internal/db"
)

// Querier abstrai pool e transação; ambos satisfazem a interface.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository fornece acesso aos dados de usuários, equipes e tokens.
type Repository struct {
	pool *pgxpool.Pool
}

// New cria repositório sobre o pool informado.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// db devolve a transação corrente quando o pipeline abriu uma; caso
// contrário opera direto no pool.
func (r *Repository) db(ctx context.Context) Querier {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

const userColumns = `
        id, team_id, name, username, email, phone_number, password_hash, position,
        email_confirmed, phone_confirmed, two_factor_enabled, two_factor_provider,
        totp_secret, created_at
`

// FindUserWithTeamDetails recupera usuário junto com dados mínimos da equipe.
func (r *Repository) FindUserWithTeamDetails(ctx context.Context, id uuid.UUID) (User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE id = $1
    `

	row := r.db(ctx).QueryRow(ctx, query, id)
	return scanUser(row)
}

// GetUserByIdentifier busca por e-mail ou username, normalizados.
func (r *Repository) GetUserByIdentifier(ctx context.Context, identifier string) (User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE email = $1 OR username = $1
    `

	normalized := strings.ToLower(strings.TrimSpace(identifier))
	row := r.db(ctx).QueryRow(ctx, query, normalized)
	return scanUser(row)
}

// GetUserByID recupera usuário pelo ID.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return r.FindUserWithTeamDetails(ctx, id)
}

// CreateUserInput agrega campos para inserção de membro.
type CreateUserInput struct {
	TeamID       uuid.UUID
	Name         string
	Username     string
	Email        string
	PhoneNumber  *string
	PasswordHash *string
	Position     int
}

// InsertUser insere novo membro e devolve o registro criado.
func (r *Repository) InsertUser(ctx context.Context, input CreateUserInput) (User, error) {
	const query = `
        INSERT INTO users (id, team_id, name, username, email, phone_number, password_hash, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + userColumns + `
    `

	row := r.db(ctx).QueryRow(ctx, query,
		uuid.New(),
		input.TeamID,
		strings.TrimSpace(input.Name),
		strings.ToLower(strings.TrimSpace(input.Username)),
		strings.ToLower(strings.TrimSpace(input.Email)),
		input.PhoneNumber,
		input.PasswordHash,
		input.Position,
	)
	user, err := scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return User{}, ErrDuplicate
	}
	return user, err
}

// UpdateUser atualiza campos editáveis do membro.
func (r *Repository) UpdateUser(ctx context.Context, id uuid.UUID, name string, phoneNumber *string) error {
	const query = `
        UPDATE users
        SET name = $2, phone_number = $3
        WHERE id = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, id, strings.TrimSpace(name), phoneNumber)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserPosition move o membro para nova posição.
func (r *Repository) UpdateUserPosition(ctx context.Context, id uuid.UUID, position int) error {
	const query = `
        UPDATE users
        SET position = $2
        WHERE id = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, id, position)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmailConfirmed marca o e-mail como confirmado.
func (r *Repository) SetEmailConfirmed(ctx context.Context, id uuid.UUID) error {
	const query = `
        UPDATE users
        SET email_confirmed = true
        WHERE id = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTwoFactor grava provedor, segredo TOTP e estado do segundo fator.
func (r *Repository) SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool, provider TwoFactorProvider, totpSecret *string) error {
	const query = `
        UPDATE users
        SET two_factor_enabled = $2, two_factor_provider = $3, totp_secret = $4
        WHERE id = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, id, enabled, string(provider), totpSecret)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser remove definitivamente o membro.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	const query = `
        DELETE FROM users
        WHERE id = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u        User
		provider string
	)
	err := row.Scan(
		&u.ID,
		&u.TeamID,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.Position,
		&u.EmailConfirmed,
		&u.PhoneConfirmed,
		&u.TwoFactorEnabled,
		&provider,
		&u.TotpSecret,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.TwoFactorProvider = TwoFactorProvider(provider)
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
