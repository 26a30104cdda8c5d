package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"project_citabot/internal/entities"
)

const tokenTTL = 24 * time.Hour

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

type AuthUsecase struct {
	userRepo  UserStore
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthUsecase(repo UserStore, secret string) *AuthUsecase {
	return &AuthUsecase{
		userRepo:  repo,
		jwtSecret: []byte(secret),
		now:       time.Now,
	}
}

func (uc *AuthUsecase) Register(ctx context.Context, username, password string) (*entities.User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, invalid("username must be 3-50 letters, digits, '_' or '-'")
	}
	if len(password) < 6 {
		return nil, invalid("password must be at least 6 characters")
	}

	existing, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, newError(ErrConflict, "username already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         entities.RoleUser,
		IsActive:     true,
		WAEnabled:    true,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (uc *AuthUsecase) Login(ctx context.Context, username, password string) (string, *entities.User, error) {
	user, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !user.IsActive {
		return "", nil, ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	token, err := uc.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs an HS256 token carrying user_id and role.
func (uc *AuthUsecase) IssueToken(user *entities.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     uc.now().Add(tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Me returns the user behind a token, rejecting disabled accounts.
func (uc *AuthUsecase) Me(ctx context.Context, userID int) (*entities.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user not found")
	}
	return user, nil
}

// EnsureAdmin creates the admin account if it does not exist yet.
func (uc *AuthUsecase) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, errors.New("admin username and password are required")
	}
	user, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if user != nil {
		return false, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	admin := &entities.User{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         entities.RoleAdmin,
		IsActive:     true,
		WAEnabled:    true,
	}
	if err := uc.userRepo.Create(ctx, admin); err != nil {
		return false, err
	}
	return true, nil
}
