package service

import (
	"context"
	"errors"
	"time"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrTenantNotFound       = errors.New("coaching business not found")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
)

// AuthService registers and authenticates users within a tenant.
type AuthService interface {
	Register(ctx context.Context, tenantSlug, name, email, password string, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	GetJWTSecret() string
}

// authService implements the AuthService interface.
type authService struct {
	userRepo      repository.UserRepository
	tenantRepo    repository.TenantRepository
	profileRepo   repository.ProfileRepository
	clientRepo    repository.ClientRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of authService.
func NewAuthService(
	userRepo repository.UserRepository,
	tenantRepo repository.TenantRepository,
	profileRepo repository.ProfileRepository,
	clientRepo repository.ClientRepository,
	jwtSecret string,
	jwtExpiration time.Duration,
) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour * 24
	}
	return &authService{
		userRepo:      userRepo,
		tenantRepo:    tenantRepo,
		profileRepo:   profileRepo,
		clientRepo:    clientRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// Register creates a user account inside the tenant identified by slug,
// plus the role-appropriate record: a coach Profile or an athlete Client.
func (s *authService) Register(ctx context.Context, tenantSlug, name, email, password string, role domain.Role) (*domain.User, error) {
	if tenantSlug == "" || name == "" || email == "" || password == "" || role == "" {
		return nil, errors.New("tenant, name, email, password, and role cannot be empty")
	}

	tenant, err := s.tenantRepo.GetBySlug(ctx, tenantSlug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}

	_, err = s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	user.ID = userID

	switch role {
	case domain.RoleCoach:
		profile := &domain.Profile{
			UserID:   userID,
			TenantID: tenant.ID,
			Name:     name,
			Role:     domain.RoleCoach,
		}
		if _, err := s.profileRepo.Create(ctx, profile); err != nil {
			return nil, err
		}
	case domain.RoleClient:
		client := &domain.Client{
			UserID:   userID,
			TenantID: tenant.ID,
			Name:     name,
			Email:    email,
		}
		if _, err := s.clientRepo.Create(ctx, client); err != nil {
			return nil, err
		}
	}

	user.PasswordHash = ""
	return user, nil
}

// Login handles user authentication and JWT generation.
func (s *authService) Login(ctx context.Context, email, password string) (token string, user *domain.User, err error) {
	if email == "" || password == "" {
		err = errors.New("email and password cannot be empty")
		return
	}

	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = ErrAuthenticationFailed
			return
		}
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		err = ErrAuthenticationFailed
		user = nil
		return
	}

	tenantID := s.lookupTenantID(ctx, user)

	token, err = s.generateJWT(user, tenantID)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}

	user.PasswordHash = ""
	return token, user, nil
}

// --- JWT Helper ---

// AuthClaims defines the structure of the JWT payload.
type AuthClaims struct {
	UserID   string      `json:"uid"`
	TenantID string      `json:"tenant,omitempty"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserObjectID parses the uid claim back into an ObjectID.
func (c *AuthClaims) UserObjectID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(c.UserID)
}

// lookupTenantID finds the tenant to stamp into the token claims. An
// account without a role record yet still logs in with an empty tenant.
func (s *authService) lookupTenantID(ctx context.Context, user *domain.User) string {
	switch user.Role {
	case domain.RoleCoach:
		if profile, err := s.profileRepo.GetByUserID(ctx, user.ID); err == nil {
			return profile.TenantID.Hex()
		}
	case domain.RoleClient:
		if client, _, err := s.clientRepo.GetByUserIDWithTenant(ctx, user.ID); err == nil {
			return client.TenantID.Hex()
		}
	}
	return ""
}

// generateJWT creates a new JWT token for the given user.
func (s *authService) generateJWT(user *domain.User, tenantID string) (string, error) {
	expirationTime := time.Now().Add(s.jwtExpiration)
	claims := &AuthClaims{
		UserID:   user.ID.Hex(),
		TenantID: tenantID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "coachfit",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// GetJWTSecret returns the JWT secret for middleware authentication
func (s *authService) GetJWTSecret() string {
	return s.jwtSecret
}
