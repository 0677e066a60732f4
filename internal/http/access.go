package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-auth/internal/domain"
	"identity-auth/internal/service"
)

// Operation identifica una operación protegida del API público.
type Operation string

const (
	OpRegister       Operation = "auth.register"
	OpLogin          Operation = "auth.login"
	OpForgotPassword Operation = "auth.forgot-password"
	OpValidateOTP    Operation = "auth.validate-otp"
	OpResetPassword  Operation = "auth.reset-password"

	OpListUsers   Operation = "users.list"
	OpGetUser     Operation = "users.get"
	OpUpdateUser  Operation = "users.update"
	OpDeleteUser  Operation = "users.delete"
	OpEnableUser  Operation = "users.enable"
	OpDisableUser Operation = "users.disable"

	OpGetSelf    Operation = "me.get"
	OpUpdateSelf Operation = "me.update"
	OpPatchSelf  Operation = "me.patch"
)

var (
	public    []string
	adminOnly = []string{domain.AuthorityAdmin}
	anyUser   = []string{domain.AuthorityUser, domain.AuthorityAdmin}
)

// accessPolicy asigna a cada operación las authorities que la habilitan; nil
// significa operación pública. Las rutas internas no pasan por acá: las
// protege el listener interno y su allowlist de red.
var accessPolicy = map[Operation][]string{
	OpRegister:       public,
	OpLogin:          public,
	OpForgotPassword: public,
	OpValidateOTP:    public,
	OpResetPassword:  public,

	OpListUsers:   adminOnly,
	OpGetUser:     adminOnly,
	OpUpdateUser:  adminOnly,
	OpDeleteUser:  adminOnly,
	OpEnableUser:  adminOnly,
	OpDisableUser: adminOnly,

	OpGetSelf:    anyUser,
	OpUpdateSelf: anyUser,
	OpPatchSelf:  anyUser,
}

// RequireAuthority aplica accessPolicy: 401 sin principal, 403 si el rol no
// alcanza.
func RequireAuthority(op Operation, logger *zap.Logger) gin.HandlerFunc {
	required, ok := accessPolicy[op]
	if !ok {
		panic(fmt.Sprintf("http: no access policy for operation %q", op))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if len(required) == 0 {
			c.Next()
			return
		}
		p, ok := GetPrincipal(c)
		if !ok {
			respondError(c, logger, service.Unauthorized("Full authentication is required to access this resource"))
			return
		}
		if !p.HasAnyAuthority(required...) {
			logger.Debug("access denied",
				zap.String("operation", string(op)),
				zap.Int64("user_id", p.ID),
				zap.String("role", string(p.Role)),
			)
			respondError(c, logger, service.Forbidden("Access denied"))
			return
		}
		c.Next()
	}
}
