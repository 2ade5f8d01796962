package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gumwoo/fivlo/internal/persistence"
)

const (
	defaultTokenTTL      = 24 * time.Hour
	tokenIssuer          = "fivlo"
	maxDisplayNameLength = 40
)

// PasswordHashing hashes and verifies passwords.
type PasswordHashing interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) error
}

// AuthService registers accounts and issues bearer tokens.
type AuthService struct {
	users       UserStore
	passwords   PasswordHashing
	secret      []byte
	tokenTTL    time.Duration
	location    string
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthService constructs an AuthService signing HS256 tokens with secret.
func NewAuthService(users UserStore, passwords PasswordHashing, secret []byte, tokenTTL time.Duration, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(users, passwords, secret, tokenTTL, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(users UserStore, passwords PasswordHashing, secret []byte, tokenTTL time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if passwords == nil {
		passwords = NewPasswordHasher(DefaultArgon2idParams)
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	if idGenerator == nil {
		idGenerator = defaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:       users,
		passwords:   passwords,
		secret:      secret,
		tokenTTL:    tokenTTL,
		location:    "UTC",
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SetDefaultTimezone sets the zone assigned when Register gets none.
func (s *AuthService) SetDefaultTimezone(name string) {
	if name = strings.TrimSpace(name); name != "" {
		s.location = name
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with a zero balance.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (user persistence.User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Register", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	}()

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if addr, pErr := mail.ParseAddress(email); pErr != nil || addr.Address != email {
		vErr.add("email", "email is invalid")
	}
	if utf8.RuneCountInString(params.Password) < MinPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	name := strings.TrimSpace(params.DisplayName)
	switch {
	case name == "":
		vErr.add("display_name", "display name is required")
	case utf8.RuneCountInString(name) > maxDisplayNameLength:
		vErr.add("display_name", fmt.Sprintf("display name must be at most %d characters", maxDisplayNameLength))
	}
	timezone := strings.TrimSpace(params.Timezone)
	if timezone == "" {
		timezone = s.location
	} else if _, lErr := time.LoadLocation(timezone); lErr != nil {
		vErr.add("timezone", "timezone is not a known IANA zone")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	if hash, err = s.passwords.Hash(params.Password); err != nil {
		return
	}

	now := s.now().UTC()
	user = persistence.User{
		ID:           s.idGenerator(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Timezone:     timezone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = newValidationError("email", "email is already registered")
			return
		}
		err = mapRepoError(err)
	}
	return
}

// Login verifies credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (result LoginResult, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "authentication succeeded", "user_id", result.User.ID)
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var user persistence.User
	if user, err = s.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if err = s.passwords.Verify(user.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	expires := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        s.idGenerator(),
	}
	var token string
	if token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret); err != nil {
		return
	}
	result = LoginResult{User: user, Token: token, ExpiresAt: expires}
	return
}

// ValidateToken resolves a bearer token to the principal it was issued for.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		s.loggerWith(ctx, "ValidateToken").DebugContext(ctx, "token rejected", "error", err)
		return Principal{}, ErrInvalidToken
	}

	principal := Principal{UserID: claims.Subject}
	if s.users != nil {
		user, err := s.users.GetUser(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return Principal{}, ErrInvalidToken
			}
			return Principal{}, err
		}
		principal.Email = user.Email
	}
	return principal, nil
}
