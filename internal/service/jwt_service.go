package service

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"identity-auth/internal/config"
	"identity-auth/internal/domain"
)

// JWTService emite y valida bearer tokens HS256.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
	logger *zap.Logger
}

// Claims son los claims del token: sub, role, iat y exp.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

// NewJWTService materializa la clave una sola vez a partir del secreto Base64.
func NewJWTService(secretB64 string, ttl, leeway time.Duration, logger *zap.Logger) (*JWTService, error) {
	key, err := config.DecodeSecret(secretB64)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &JWTService{
		secret: key,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// TTL devuelve la vida configurada de los tokens.
func (s *JWTService) TTL() time.Duration { return s.ttl }

// Issue firma un token para el usuario.
func (s *JWTService) Issue(userID int64, role domain.Role) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ExtractSubject devuelve el sub de un token con firma verificada.
func (s *JWTService) ExtractSubject(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractRole devuelve el claim role de un token con firma verificada.
func (s *JWTService) ExtractRole(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Role, nil
}

// Validate indica si el token es válido y, si expected trae un id, si
// pertenece a ese usuario. Nunca devuelve error: las fallas se registran.
func (s *JWTService) Validate(token string, expected *domain.Principal) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	claims, err := s.parse(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return false
	}
	if expected != nil && expected.ID != 0 && claims.Subject != strconv.FormatInt(expected.ID, 10) {
		s.logger.Debug("token subject mismatch",
			zap.String("subject", claims.Subject),
			zap.Int64("expected_id", expected.ID),
		)
		return false
	}
	return true
}

func (s *JWTService) parse(tokenString string) (Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	var claims Claims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, errors.Join(ErrJWTInvalid, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}
