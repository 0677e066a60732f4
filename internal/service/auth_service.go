package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"identity-auth/internal/domain"
	"identity-auth/internal/hrsink"
	"identity-auth/internal/repository"
)

const minPasswordLen = 8

// AuthService resuelve registro y login.
type AuthService struct {
	logger *zap.Logger
	store  repository.Store
	hasher PasswordHasher
	tokens *JWTService
	status *StatusWriter
	hr     *hrsink.Dispatcher
}

func NewAuthService(logger *zap.Logger, store repository.Store, hasher PasswordHasher, tokens *JWTService, status *StatusWriter, hr *hrsink.Dispatcher) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger: logger,
		store:  store,
		hasher: hasher,
		tokens: tokens,
		status: status,
		hr:     hr,
	}
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type LoginResult struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
}

// Register crea un usuario USER habilitado. La cache y RRHH se actualizan
// solo después del commit.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	return s.create(ctx, in, domain.RoleUser)
}

// CreateAdmin da de alta un ADMIN; solo lo usa la CLI de operación.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (domain.User, error) {
	return s.create(ctx, in, domain.RoleAdmin)
}

func (s *AuthService) create(ctx context.Context, in RegisterInput, role domain.Role) (domain.User, error) {
	if fields := validateRegistration(in); len(fields) > 0 {
		return domain.User{}, Validation("Validation failed", fields)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, Internal(err)
	}

	var created domain.User
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		users := tx.Users()
		taken, err := users.ExistsByHandle(ctx, in.Username)
		if err != nil {
			return err
		}
		if taken {
			return BadRequest(MsgUsernameTaken)
		}
		taken, err = users.ExistsByMail(ctx, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return BadRequest(MsgEmailTaken)
		}
		created, err = users.Save(ctx, domain.User{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hash,
			Role:         role,
			Enabled:      true,
		})
		return err
	})
	if err != nil {
		return domain.User{}, fromStore(err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", created.ID), zap.String("role", string(role)))
	s.status.Put(ctx, created.ID, true)
	s.hr.UserRegistered(ctx, created, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName))
	return created, nil
}

// Login verifica credenciales y emite un bearer token.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (LoginResult, error) {
	user, err := s.store.Users().FindByHandleOrMail(ctx, usernameOrEmail)
	if errors.Is(err, repository.ErrNotFound) {
		if d, ok := s.hasher.(interface{ VerifyDummy(string) }); ok {
			d.VerifyDummy(password)
		}
		return LoginResult{}, Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return LoginResult{}, Internal(err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return LoginResult{}, Unauthorized(MsgInvalidCredentials)
	}
	if !user.Enabled {
		s.logger.Info("login rejected for disabled user", zap.Int64("user_id", user.ID))
		return LoginResult{}, Unauthorized(MsgAccountDisabled)
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, Internal(err)
	}
	s.status.Put(ctx, user.ID, true)
	return LoginResult{Token: token, TokenType: "Bearer"}, nil
}

func validateRegistration(in RegisterInput) map[string]string {
	fields := map[string]string{}
	if !domain.ValidHandle(in.Username) {
		fields["username"] = "Username is required and cannot contain '@'"
	}
	if !validMail(in.Email) {
		fields["email"] = "Email must be valid"
	}
	if len(in.Password) < minPasswordLen {
		fields["password"] = "Password must be at least 8 characters"
	}
	return fields
}
