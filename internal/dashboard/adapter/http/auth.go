package http

import (
	stderrors "errors"
	"strings"
	"time"

	"content-sync/internal/collection/config"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"
	"content-sync/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// subjectLocal is the Fiber locals key holding the token subject.
const subjectLocal = "subject"

// AdminAuth checks HS256 bearer tokens on admin routes. With no secret
// configured every request passes.
type AdminAuth struct {
	secret []byte
	issuer string
	log    logger.Logger
}

// NewAdminAuth creates the middleware from the auth settings.
func NewAdminAuth(cfg config.AuthConfig, log logger.Logger) *AdminAuth {
	return &AdminAuth{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		log:    logger.OrNop(log).WithComponent("admin_auth"),
	}
}

// Enabled reports whether tokens are checked.
func (a *AdminAuth) Enabled() bool { return len(a.secret) > 0 }

// IssueToken signs a token for subject valid for ttl.
func (a *AdminAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.NewValidationError("admin auth is disabled: no secret configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateToken parses a token and returns its subject.
func (a *AdminAuth) ValidateToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.ErrInvalidToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.ErrTokenExpired
		}
		return "", errors.ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.ErrInvalidToken
	}
	return claims.Subject, nil
}

// Protect returns middleware that requires a valid admin token.
func (a *AdminAuth) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.Enabled() {
			return c.Next()
		}
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}
		subject, err := a.ValidateToken(token)
		if err != nil {
			a.log.Debugf("rejected token on %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(subjectLocal, subject)
		c.SetUserContext(utils.WithSubject(c.UserContext(), subject))
		return c.Next()
	}
}

// extractToken reads the bearer token, or the token query parameter that
// browsers use for WebSocket upgrades.
func extractToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}
