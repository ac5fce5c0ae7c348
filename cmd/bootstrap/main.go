package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/db"
	"github.com/gestaozabele/identidade/internal/repo"
	"github.com/gestaozabele/identidade/internal/util"
)

// bootstrap cria as equipes singleton (SUPER e MAINTENANCE) e o primeiro
// usuário super-administrador. Idempotente: equipes já existentes são
// reaproveitadas.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	name := flag.String("name", "", "nome do primeiro super-administrador")
	username := flag.String("username", "", "username de login (opcional)")
	email := flag.String("email", "", "e-mail de login")
	password := flag.String("password", "", "senha inicial")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := util.ValidateEmail(*email); err != nil {
		log.Fatal().Err(err).Msg("e-mail inválido")
	}
	if err := util.ValidatePassword(*password); err != nil {
		log.Fatal().Err(err).Msg("senha inválida")
	}

	_ = godotenv.Load()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	repository := repo.New(pool)
	runner := db.NewRunner(pool)

	err = runner.WithinTx(ctx, func(ctx context.Context) error {
		superTeam, err := ensureSingleton(ctx, repository, repo.TeamSuper, "Super Administração")
		if err != nil {
			return err
		}
		if _, err := ensureSingleton(ctx, repository, repo.TeamMaintenance, "Manutenção"); err != nil {
			return err
		}

		hash, err := auth.HashPassword(*password)
		if err != nil {
			return err
		}

		user, err := repository.InsertUser(ctx, repo.CreateUserInput{
			TeamID:       superTeam.ID,
			Name:         *name,
			Username:     *username,
			Email:        *email,
			PasswordHash: &hash,
			Position:     superTeam.MaxPosition,
		})
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return fmt.Errorf("usuário %s já cadastrado", *email)
			}
			return err
		}

		// O primeiro super entra com e-mail já confirmado e lidera a equipe.
		if err := repository.SetEmailConfirmed(ctx, user.ID); err != nil {
			return err
		}
		if err := repository.UpdateTeamLeader(ctx, superTeam.ID, user.ID); err != nil {
			return err
		}

		log.Info().
			Str("user_id", user.ID.String()).
			Str("team_id", superTeam.ID.String()).
			Msg("super-administrador criado")
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap falhou")
	}
}

func ensureSingleton(ctx context.Context, repository *repo.Repository, teamType repo.TeamType, name string) (repo.Team, error) {
	team, err := repository.GetSingletonTeam(ctx, teamType)
	if err == nil {
		return team, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.Team{}, err
	}

	return repository.InsertTeam(ctx, repo.CreateTeamInput{
		Name:        name,
		Type:        teamType,
		MinPosition: 0,
		MaxPosition: 10,
	})
}
