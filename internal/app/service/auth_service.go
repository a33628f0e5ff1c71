package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"testseries/internal/common"
	"testseries/internal/common/security"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"

	"github.com/google/uuid"
)

const minPasswordLength = 6

type AuthService struct {
	userRepo  repository.UserRepository
	tokens    *security.TokenIssuer
	federated security.Verifier // nil when social login is not configured
}

func NewAuthService(userRepo repository.UserRepository, tokens *security.TokenIssuer, federated security.Verifier) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, federated: federated}
}

type RegisterRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Grade    string   `json:"grade"`
	Subjects []string `json:"subjects"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FederatedLoginRequest struct {
	IDToken string `json:"id_token"`
}

type UpdateProfileRequest struct {
	Name     *string  `json:"name"`
	Grade    *string  `json:"grade"`
	Subjects []string `json:"subjects"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type UserListResponse struct {
	Users    []model.User `json:"users"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, common.Errorf("name, email and password are required: %w", common.ErrValidation)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, common.Errorf("invalid email address: %w", common.ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, common.Errorf("password must be at least %d characters: %w", minPasswordLength, common.ErrValidation)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Email:          req.Email,
		Name:           req.Name,
		HashedPassword: hashedPassword,
		AuthProvider:   model.AuthProviderPassword,
		Role:           model.RoleStudent, // Default role
		Grade:          req.Grade,
		Subjects:       req.Subjects,
	}
	if user.Subjects == nil {
		user.Subjects = []string{}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo returns common.ErrConflict for a taken email
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, common.Errorf("email and password are required: %w", common.ErrBadRequest)
	}

	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("invalid email or password: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.Errorf("invalid email or password: %w", common.ErrUnauthorized)
	}
	return s.issue(user)
}

// FederatedLogin signs in with an external id token. Accounts are matched by
// external id first, then linked by verified email, then created. An account
// already linked to another external identity is never relinked.
func (s *AuthService) FederatedLogin(ctx context.Context, req FederatedLoginRequest) (*AuthResponse, error) {
	if s.federated == nil {
		return nil, common.Errorf("social login is not configured: %w", common.ErrServiceUnavailable)
	}
	id, err := s.federated.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, common.Errorf("%v: %w", err, common.ErrUnauthorized)
	}
	if !id.EmailVerified {
		return nil, common.Errorf("provider email is not verified: %w", common.ErrUnauthorized)
	}

	user, err := s.userRepo.FindByExternalID(ctx, id.ExternalID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	email := normalizeEmail(id.Email)
	user, err = s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.ExternalAuthID != nil {
			return nil, common.Errorf("account is linked to another identity: %w", common.ErrConflict)
		}
		if err := s.userRepo.LinkExternalID(ctx, user.ID, id.ExternalID); err != nil {
			return nil, fmt.Errorf("failed to link account: %w", err)
		}
		user.ExternalAuthID = &id.ExternalID
		log.Printf("INFO: linked federated identity to existing user %s", user.ID)
	case errors.Is(err, common.ErrNotFound):
		name := id.Name
		if name == "" {
			name = strings.Split(email, "@")[0]
		}
		user = &model.User{
			ID:             uuid.NewString(),
			ExternalAuthID: &id.ExternalID,
			Email:          email,
			Name:           name,
			AuthProvider:   model.AuthProviderFederated,
			Role:           model.RoleStudent,
			Subjects:       []string{},
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return s.issue(user)
}

func (s *AuthService) Logout(ctx context.Context, id *security.Identity) error {
	if err := s.tokens.Revoke(ctx, id); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResponse, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{User: user, Token: token}, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, common.Errorf("name cannot be empty: %w", common.ErrValidation)
		}
		user.Name = name
	}
	if req.Grade != nil {
		user.Grade = *req.Grade
	}
	if req.Subjects != nil {
		user.Subjects = req.Subjects
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, role string, page, pageSize int) (*UserListResponse, error) {
	if role != "" && !model.IsValidRole(role) {
		return nil, common.Errorf("unknown role %q: %w", role, common.ErrValidation)
	}
	limit, offset := repository.Page(page, pageSize, 100)
	users, total, err := s.userRepo.List(ctx, role, limit, offset)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	return &UserListResponse{Users: users, Total: total, Page: page, PageSize: limit}, nil
}

func (s *AuthService) ChangeRole(ctx context.Context, actorID, userID, role string) (*model.User, error) {
	if !model.IsValidRole(role) {
		return nil, common.Errorf("unknown role %q: %w", role, common.ErrValidation)
	}
	if actorID == userID && role != model.RoleAdmin {
		return nil, common.Errorf("admins cannot demote themselves: %w", common.ErrBadRequest)
	}
	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, userID)
}
