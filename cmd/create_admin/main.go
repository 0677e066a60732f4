package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"identity-auth/internal/config"
	"identity-auth/internal/db"
	"identity-auth/internal/hrsink"
	"identity-auth/internal/repository"
	"identity-auth/internal/service"
)

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "create_admin",
		Usage: "Create an ADMIN account (the public API only registers USERs)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Usage: "admin username", Required: true, Sources: cli.EnvVars("ADMIN_USERNAME")},
			&cli.StringFlag{Name: "email", Usage: "admin email", Required: true, Sources: cli.EnvVars("ADMIN_EMAIL")},
			&cli.StringFlag{Name: "password", Usage: "admin password (min 8 chars)", Required: true, Sources: cli.EnvVars("ADMIN_PASSWORD")},
			&cli.StringFlag{Name: "first-name", Usage: "first name forwarded to HR"},
			&cli.StringFlag{Name: "last-name", Usage: "last name forwarded to HR"},
			&cli.BoolFlag{Name: "sync-hr", Usage: "register the admin as an employee in HR", Value: false},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	var hrClient hrsink.Client = hrsink.NoopClient{}
	if cmd.Bool("sync-hr") && cfg.HRSinkEnabled {
		hrClient = hrsink.NewHTTPClient(cfg.HRSinkBaseURL, cfg.HRSinkTimeout(), logger)
	}

	auth, err := newAuthService(cfg, logger, repository.NewPgStore(pool), hrClient)
	if err != nil {
		return err
	}

	return createAdmin(ctx, auth, service.RegisterInput{
		Username:  cmd.String("username"),
		Email:     cmd.String("email"),
		Password:  cmd.String("password"),
		FirstName: cmd.String("first-name"),
		LastName:  cmd.String("last-name"),
	}, os.Stdout)
}

func newAuthService(cfg *config.Config, logger *zap.Logger, store repository.Store, hr hrsink.Client) (*service.AuthService, error) {
	tokens, err := service.NewJWTService(cfg.JWTSecret, cfg.JWTExpiration(), cfg.JWTClockSkew(), logger)
	if err != nil {
		return nil, fmt.Errorf("jwt service: %w", err)
	}
	// sin cache de estado: el primer login del admin la completa
	status := service.NewStatusWriter(nil, logger)
	return service.NewAuthService(
		logger,
		store,
		service.NewBcryptHasher(bcrypt.DefaultCost),
		tokens,
		status,
		hrsink.NewDispatcher(hr, cfg.HRSinkTimeout(), logger),
	), nil
}

func createAdmin(ctx context.Context, auth *service.AuthService, in service.RegisterInput, out io.Writer) error {
	user, err := auth.CreateAdmin(ctx, in)
	if err != nil {
		var svcErr *service.Error
		if errors.As(err, &svcErr) && len(svcErr.Fields) > 0 {
			for field, msg := range svcErr.Fields {
				fmt.Fprintf(out, "  %s: %s\n", field, msg)
			}
		}
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(out, "admin created: id=%d username=%s email=%s\n", user.ID, user.Username, user.Email)
	return nil
}
