package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/repository"
	"campusfeed/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// DefaultVerifyTTL is how long a verification link stays valid.
const DefaultVerifyTTL = 24 * time.Hour

// userCommentsLimit caps the comment history on a profile.
const userCommentsLimit = 50

type UserService struct {
	userRepo    repository.UserRepository
	commentRepo repository.CommentRepository
	jwtSecret   string
	tokenTTL    time.Duration
	policy      AccountPolicy
}

// AccountPolicy controls who may register and how long verification links
// last. An empty AllowedDomains accepts any address.
type AccountPolicy struct {
	AllowedDomains []string
	VerifyTTL      time.Duration
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterResult is returned by Register. The account cannot log in until
// VerificationToken has been redeemed; mailing it is left to the deployment.
type RegisterResult struct {
	Message           string       `json:"message"`
	User              *models.User `json:"user"`
	VerificationToken string       `json:"verification_token"`
}

func NewUserService(
	userRepo repository.UserRepository,
	commentRepo repository.CommentRepository,
	jwtSecret string,
	tokenTTL time.Duration,
	policy AccountPolicy,
) *UserService {
	if policy.VerifyTTL <= 0 {
		policy.VerifyTTL = DefaultVerifyTTL
	}
	return &UserService{
		userRepo:    userRepo,
		commentRepo: commentRepo,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		policy:      policy,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return nil, models.NewValidationError("A valid email is required")
	}
	if len(s.policy.AllowedDomains) > 0 && !slices.Contains(s.policy.AllowedDomains, email[at+1:]) {
		return nil, models.NewValidationError("Email domain not allowed")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := middleware.IssueVerificationToken(s.jwtSecret, user.ID, s.policy.VerifyTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &RegisterResult{
		Message:           "Registration successful. Verify your email to log in.",
		User:              user,
		VerificationToken: token,
	}, nil
}

// VerifyEmail redeems a verification token. Redeeming it twice is harmless.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, models.NewValidationError("Verification token is required")
	}
	userID, err := middleware.ParseVerificationToken(s.jwtSecret, token)
	if err != nil {
		if errors.Is(err, middleware.ErrTokenExpired) {
			return nil, models.NewValidationError("Verification token expired")
		}
		return nil, models.NewValidationError("Invalid verification token")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Verified {
		if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
			return nil, err
		}
		user.Verified = true
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, models.NewInternalError(err)
	}
	if !user.Verified {
		return nil, models.NewForbiddenError("Email not verified")
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := middleware.IssueToken(s.jwtSecret, user.ID, s.tokenTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Profile returns the public view of a user with activity counts.
func (s *UserService) Profile(ctx context.Context, userID uint) (*models.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.userRepo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.UserProfile{
		ID:        user.ID,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
		Stats:     *stats,
	}, nil
}

// Comments returns the user's newest comments on visible posts.
func (s *UserService) Comments(ctx context.Context, userID uint) ([]models.UserComment, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByUser(ctx, userID, userCommentsLimit)
}
