package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"microboard/internal/auth"
	"microboard/internal/model"
	"microboard/internal/token"
	"microboard/pkg/apierror"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6
	maxBulkUsers      = 100
)

type AuthService struct {
	users      UserStore
	issuer     *token.Issuer
	bcryptCost int
}

func NewAuthService(users UserStore, issuer *token.Issuer, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, issuer: issuer, bcryptCost: bcryptCost}
}

func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.AuthResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := validateSignup(req); err != nil {
		return model.AuthResult{}, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return model.AuthResult{}, err
	}
	if exists {
		return model.AuthResult{}, model.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return model.AuthResult{}, err
	}

	signed, err := s.issuer.Issue(user.Identity())
	if err != nil {
		return model.AuthResult{}, err
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return model.AuthResult{User: user, Token: signed}, nil
}

func (s *AuthService) Signin(ctx context.Context, req model.SigninRequest) (model.AuthResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return model.AuthResult{}, apierror.BadRequest("email and password are required", "")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthResult{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.AuthResult{}, model.ErrInvalidCredentials
	}

	signed, err := s.issuer.Issue(user.Identity())
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{User: user, Token: signed}, nil
}

// Profile returns the stored record rather than the token snapshot.
func (s *AuthService) Profile(ctx context.Context, userID int64) (model.User, error) {
	return s.users.FindByID(ctx, userID)
}

// ValidateToken checks signature and expiry only. Used by the local auth middleware.
func (s *AuthService) ValidateToken(tokenString string) (*token.Claims, error) {
	return s.issuer.Verify(tokenString)
}

// VerifyToken validates the credential and confirms its subject still exists.
// The returned identity is the snapshot carried by the token.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (model.Identity, error) {
	claims, err := s.issuer.Verify(tokenString)
	if err != nil {
		return model.Identity{}, err
	}

	_, err = s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Identity{}, auth.NewError(auth.KindInvalidCredential, "user not found", err)
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("verify token subject: %w", err)
	}

	return claims.Identity(), nil
}

func (s *AuthService) GetUser(ctx context.Context, id int64) (model.User, error) {
	if id <= 0 {
		return model.User{}, model.ErrUserNotFound
	}
	return s.users.FindByID(ctx, id)
}

func (s *AuthService) BulkUsers(ctx context.Context, ids []int64) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, apierror.BadRequest("userIds must be a non-empty array", "userIds")
	}
	if len(ids) > maxBulkUsers {
		return nil, apierror.BadRequest(fmt.Sprintf("at most %d userIds per request", maxBulkUsers), "userIds")
	}

	valid := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			valid = append(valid, id)
		}
	}
	return s.users.FindByIDs(ctx, valid)
}

func validateSignup(req model.SignupRequest) error {
	if n := len(req.Username); n < minUsernameLength || n > maxUsernameLength {
		return apierror.BadRequest(
			fmt.Sprintf("username must be %d-%d characters", minUsernameLength, maxUsernameLength), "username")
	}
	for _, r := range req.Username {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return apierror.BadRequest("username must be alphanumeric", "username")
		}
	}

	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return apierror.BadRequest("email must be a valid address", "email")
	}

	if len(req.Password) < minPasswordLength {
		return apierror.BadRequest(
			fmt.Sprintf("password must be at least %d characters", minPasswordLength), "password")
	}
	return nil
}
