package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CredentialStore exposes the account operations required by the auth service.
type CredentialStore interface {
	CreateUser(ctx context.Context, creds UserCredentials) (User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// AuthService registers accounts, logs them in and resolves bearer tokens to
// principals.
type AuthService struct {
	credentials    CredentialStore
	tokens         *TokenIssuer
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, tokens *TokenIssuer, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(credentials, tokens, nil, nil, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
// Nil hash and verify functions fall back to argon2id with default params.
func NewAuthServiceWithLogger(credentials CredentialStore, tokens *TokenIssuer, hash PasswordHasher, verify PasswordVerifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if hash == nil {
		hash = HashPassword
	}
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		hashPassword:   hash,
		verifyPassword: verify,
		idGenerator:    idGenerator,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) ready() error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store not configured")
	}
	if s.tokens == nil {
		return fmt.Errorf("token issuer not configured")
	}
	return nil
}

// Register creates a regular user account and returns it with a token.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	username := strings.TrimSpace(params.Username)
	email := normalizeEmail(params.Email)

	logger := s.loggerWith(ctx, "Register", "username", username, "email", email)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "registration failed", err)
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user registered")
	}()

	vErr := &ValidationError{}
	validateUsername(vErr, username)
	validateEmail(vErr, email)
	if len(params.Password) < passwordMin {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", passwordMin))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	now := normalizeInstant(s.now())
	creds := UserCredentials{
		User: User{
			ID:        s.idGenerator(),
			Username:  username,
			Email:     email,
			Role:      RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
	}

	var user User
	user, err = s.credentials.CreateUser(ctx, creds)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrAlreadyExists) {
			err = withDetail(ErrAlreadyExists, "user with this email or username already exists")
		}
		return
	}

	result, err = s.issue(user)
	return
}

// Login verifies an email and password pair and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result AuthResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "login failed", err)
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "login succeeded")
	}()

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	}
	if params.Password == "" {
		vErr.add("password", "password is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if verr := s.verifyPassword(creds.PasswordHash, params.Password); verr != nil {
		err = ErrInvalidCredentials
		return
	}

	result, err = s.issue(creds.User)
	return
}

func (s *AuthService) issue(user User) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to the principal of a user that still
// exists. The role is read from the stored account, not the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.ready(); err != nil {
		return
	}

	token = strings.TrimSpace(token)
	if token == "" {
		err = ErrUnauthenticated
		return
	}

	var claims TokenClaims
	claims, err = s.tokens.Parse(token)
	if err != nil {
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, claims.Subject)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = withDetail(ErrUnauthenticated, "user no longer exists")
		}
		if !errors.Is(err, ErrUnauthenticated) {
			logOutcome(ctx, s.loggerWith(ctx, "Authenticate", "user_id", claims.Subject), "token lookup failed", err)
		}
		return
	}

	principal = user.Principal()
	return
}

// CurrentUser returns the account of the acting principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal Principal) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if err := requireAuthenticated(principal); err != nil {
		return User{}, err
	}
	user, err := s.credentials.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return user, nil
}
