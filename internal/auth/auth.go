// Package auth turns request credentials into the acting user of a job
// operation. It verifies HS256 bearer tokens issued elsewhere and, when
// enabled, HTTP Basic credentials checked against the user directory.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pressline/internal/config"
	"pressline/internal/jobs"
	"pressline/internal/users"
)

var (
	// ErrUnauthenticated is returned when a request carries no usable credentials.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken is returned for a bearer token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token body. The subject carries the user id.
type Claims struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	EmployeeID string `json:"employeeId"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into an acting user.
func (c *Claims) Actor() jobs.Actor {
	return jobs.Actor{UserID: c.Subject, Name: c.Name, Role: c.Role, EmployeeID: c.EmployeeID}
}

// PasswordChecker verifies employee credentials.
type PasswordChecker interface {
	Authenticate(ctx context.Context, employeeID, password string) (*users.User, error)
}

// Verifier identifies callers.
type Verifier struct {
	secret []byte
	issuer string
	basic  PasswordChecker
	now    func() time.Time
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier builds a Verifier from the auth section. Basic credentials are
// accepted only when cfg.AllowBasic is set and checker is non-nil.
func NewVerifier(cfg config.Auth, checker PasswordChecker, opts ...Option) *Verifier {
	v := &Verifier{
		secret: []byte(cfg.TokenSecret),
		issuer: cfg.TokenIssuer,
		now:    time.Now,
	}
	if cfg.AllowBasic {
		v.basic = checker
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Methods lists the enabled credential schemes.
func (v *Verifier) Methods() []string {
	var methods []string
	if len(v.secret) > 0 {
		methods = append(methods, "bearer")
	}
	if v.basic != nil {
		methods = append(methods, "basic")
	}
	return methods
}

// VerifyToken validates a signed token and returns its claims.
func (v *Verifier) VerifyToken(raw string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: bearer tokens are not enabled", ErrInvalidToken)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Identify resolves the caller of r.
func (v *Verifier) Identify(r *http.Request) (jobs.Actor, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return jobs.Actor{}, ErrUnauthenticated
	}

	scheme, value, _ := strings.Cut(header, " ")
	switch {
	case strings.EqualFold(scheme, "Bearer"):
		claims, err := v.VerifyToken(strings.TrimSpace(value))
		if err != nil {
			return jobs.Actor{}, err
		}
		return claims.Actor(), nil
	case strings.EqualFold(scheme, "Basic") && v.basic != nil:
		employeeID, password, ok := r.BasicAuth()
		if !ok {
			return jobs.Actor{}, ErrUnauthenticated
		}
		user, err := v.basic.Authenticate(r.Context(), employeeID, password)
		if err != nil {
			if errors.Is(err, users.ErrInvalidCredentials) {
				return jobs.Actor{}, ErrUnauthenticated
			}
			return jobs.Actor{}, err
		}
		return user.Actor(), nil
	default:
		return jobs.Actor{}, ErrUnauthenticated
	}
}

type actorKey struct{}

// WithActor stores the acting user on ctx.
func WithActor(ctx context.Context, actor jobs.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting user stored by WithActor.
func ActorFromContext(ctx context.Context) (jobs.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(jobs.Actor)
	return actor, ok
}
