package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const teamColumns = `
        id, name, type, min_position, max_position, capacity, leader_id, created_at
`

// GetTeamByID recupera a equipe sem carregar membros.
func (r *Repository) GetTeamByID(ctx context.Context, id uuid.UUID) (Team, error) {
	const query = `
        SELECT ` + teamColumns + `
        FROM teams
        WHERE id = $1
    `

	row := r.db(ctx).QueryRow(ctx, query, id)
	return scanTeam(row)
}

// GetTeamWithMembers recupera a equipe com todos os membros carregados.
func (r *Repository) GetTeamWithMembers(ctx context.Context, id uuid.UUID) (Team, error) {
	team, err := r.GetTeamByID(ctx, id)
	if err != nil {
		return Team{}, err
	}

	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE team_id = $1
        ORDER BY position DESC, created_at ASC
    `

	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return Team{}, err
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return Team{}, err
		}
		team.Members = append(team.Members, user)
	}
	if err := rows.Err(); err != nil {
		return Team{}, err
	}
	return team, nil
}

// GetSingletonTeam devolve a equipe única de um tipo (MAINTENANCE ou SUPER).
func (r *Repository) GetSingletonTeam(ctx context.Context, teamType TeamType) (Team, error) {
	const query = `
        SELECT ` + teamColumns + `
        FROM teams
        WHERE type = $1
        LIMIT 1
    `

	row := r.db(ctx).QueryRow(ctx, query, string(teamType))
	return scanTeam(row)
}

// CreateTeamInput agrega campos de criação de equipe.
type CreateTeamInput struct {
	Name        string
	Type        TeamType
	MinPosition int
	MaxPosition int
	Capacity    int
}

// InsertTeam registra nova equipe.
func (r *Repository) InsertTeam(ctx context.Context, input CreateTeamInput) (Team, error) {
	const query = `
        INSERT INTO teams (id, name, type, min_position, max_position, capacity)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + teamColumns + `
    `

	row := r.db(ctx).QueryRow(ctx, query,
		uuid.New(),
		strings.TrimSpace(input.Name),
		string(input.Type),
		input.MinPosition,
		input.MaxPosition,
		input.Capacity,
	)
	return scanTeam(row)
}

// UpdateTeamLeader troca a liderança da equipe.
func (r *Repository) UpdateTeamLeader(ctx context.Context, teamID, leaderID uuid.UUID) error {
	const query = `
        UPDATE teams
        SET leader_id = $2
        WHERE id = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, teamID, leaderID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTeamPositionRange altera a faixa de posições da equipe.
func (r *Repository) UpdateTeamPositionRange(ctx context.Context, teamID uuid.UUID, minPosition, maxPosition int) error {
	const query = `
        UPDATE teams
        SET min_position = $2, max_position = $3
        WHERE id = $1
    `

	cmd, err := r.db(ctx).Exec(ctx, query, teamID, minPosition, maxPosition)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTeam remove a equipe; membros devem ser removidos antes (FK).
func (r *Repository) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	const query = `
        DELETE FROM teams
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

func scanTeam(row pgx.Row) (Team, error) {
	var (
		t        Team
		teamType string
	)
	err := row.Scan(
		&t.ID,
		&t.Name,
		&teamType,
		&t.MinPosition,
		&t.MaxPosition,
		&t.Capacity,
		&t.LeaderID,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, err
	}
	t.Type = TeamType(teamType)
	return t, nil
}
