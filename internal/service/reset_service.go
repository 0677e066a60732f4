package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"

	"identity-auth/internal/domain"
	"identity-auth/internal/email"
	"identity-auth/internal/repository"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// ResetService implementa el ciclo de vida de los códigos de restablecimiento:
// emisión, validación sin consumo y consumo único en el reset.
type ResetService struct {
	logger        *zap.Logger
	store         repository.Store
	hasher        PasswordHasher
	sender        email.Sender
	ttl           time.Duration
	revealUnknown bool
	throttle      ResetThrottle

	now      func() time.Time
	generate func() (string, error)
}

func NewResetService(logger *zap.Logger, store repository.Store, hasher PasswordHasher, sender email.Sender, ttl time.Duration, revealUnknown bool) *ResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if sender == nil {
		sender = email.NewDisabledSender("")
	}
	return &ResetService{
		logger:        logger,
		store:         store,
		hasher:        hasher,
		sender:        sender,
		ttl:           ttl,
		revealUnknown: revealUnknown,
		now:           time.Now,
		generate:      generateResetCode,
	}
}

// WithThrottle activa el límite de pedidos por email.
func (s *ResetService) WithThrottle(t ResetThrottle) *ResetService {
	s.throttle = t
	return s
}

// RequestReset reemplaza cualquier código previo del email por uno nuevo y lo
// envía. Con revealUnknown=false un email desconocido responde igual que uno
// conocido.
func (s *ResetService) RequestReset(ctx context.Context, mail string) error {
	// se evalúa antes de buscar al usuario para no distinguir emails
	if s.throttle != nil && !s.throttle.Allow(ctx, mail) {
		s.logger.Warn("password reset throttled")
		return TooMany(MsgTooManyResets)
	}

	var (
		issued domain.ResetCode
		known  bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().FindByMail(ctx, mail); err != nil {
			if isNotFound(err) && !s.revealUnknown {
				return nil
			}
			if isNotFound(err) {
				return NotFound("User not found with email: " + mail)
			}
			return err
		}
		known = true

		codes := tx.ResetCodes()
		if err := codes.LockMail(ctx, mail); err != nil {
			return err
		}
		if err := codes.DeleteByMail(ctx, mail); err != nil {
			return err
		}
		code, err := s.generate()
		if err != nil {
			return err
		}
		issued, err = codes.Insert(ctx, domain.ResetCode{
			Email:     mail,
			Code:      code,
			ExpiresAt: s.now().UTC().Add(s.ttl),
		})
		return err
	})
	if err != nil {
		return fromStore(err)
	}
	if !known {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	if err := s.sender.SendPasswordResetOTP(ctx, mail, issued.Code, issued.ExpiresAt); err != nil {
		s.logger.Warn("send password reset otp failed", zap.String("email", mail), zap.Error(err))
	}
	return nil
}

// Validate comprueba el código sin consumirlo.
func (s *ResetService) Validate(ctx context.Context, mail, code string) error {
	_, err := s.activeCode(ctx, s.store.ResetCodes(), mail, code)
	return fromStore(err)
}

// Reset consume el código y cambia la contraseña en la misma transacción.
// Si dos llamadas compiten por el mismo código solo una gana.
func (s *ResetService) Reset(ctx context.Context, mail, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return Validation("Validation failed", map[string]string{"newPassword": "Password must be at least 8 characters"})
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Internal(err)
	}

	var userID int64
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		rc, err := s.activeCode(ctx, tx.ResetCodes(), mail, code)
		if err != nil {
			return err
		}
		user, err := tx.Users().FindByMail(ctx, mail)
		if err != nil {
			if isNotFound(err) {
				return NotFound("User not found with email: " + mail)
			}
			return err
		}
		won, err := tx.ResetCodes().MarkUsed(ctx, rc.ID)
		if err != nil {
			return err
		}
		if !won {
			return BadRequest(MsgInvalidOTP)
		}
		user.PasswordHash = hash
		if _, err := tx.Users().Save(ctx, user); err != nil {
			return err
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return fromStore(err)
	}
	s.logger.Info("password reset completed", zap.Int64("user_id", userID))
	return nil
}

func (s *ResetService) activeCode(ctx context.Context, codes repository.ResetCodeRepository, mail, code string) (domain.ResetCode, error) {
	rc, err := codes.FindActive(ctx, mail, code)
	if err != nil {
		if isNotFound(err) {
			return domain.ResetCode{}, BadRequest(MsgInvalidOTP)
		}
		return domain.ResetCode{}, err
	}
	if rc.ExpiredAt(s.now()) {
		return domain.ResetCode{}, BadRequest(MsgExpiredOTP)
	}
	return rc, nil
}

// generateResetCode devuelve un entero uniforme en [100000, 999999].
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
