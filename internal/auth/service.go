// Package auth はアカウント登録、ログイン、トークン認証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/repository"
	"github.com/hitoshi/conduit/internal/security"
)

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UpdateUserInput はユーザー更新の入力。nilのフィールドは変更しない。
type UpdateUserInput struct {
	Username *string
	Email    *string
	Password *string
	Bio      *string
	Image    *string
}

// TextSanitizer はプロフィール文字列のサニタイズを行う。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokens    *TokenService
	hasher    Hasher
	sanitizer TextSanitizer
}

// NewService はServiceを生成する。sanitizerがnilの場合はbioをそのまま保存する。
func NewService(userRepo repository.UserRepository, tokens *TokenService, sanitizer TextSanitizer) *Service {
	return &Service{
		userRepo:  userRepo,
		tokens:    tokens,
		sanitizer: sanitizer,
	}
}

// Register はユーザーを登録し、ユーザーとトークンを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	username := model.NormalizeUsername(in.Username)
	email := model.NormalizeEmail(in.Email)

	ve := &model.ValidationError{}
	model.ValidateUsername(ve, username)
	model.ValidateEmail(ve, email)
	if in.Password == "" {
		ve.Add("password", model.MsgBlank)
	}
	if err := s.checkTaken(ctx, ve, username, email, ""); err != nil {
		return nil, "", err
	}
	if err := ve.OrNil(); err != nil {
		return nil, "", err
	}

	salt, err := s.hasher.NewSalt()
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	user := &model.User{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          email,
		PasswordSalt:   salt,
		PasswordDigest: s.hasher.Hash(in.Password, salt),
		Favorites:      model.NewIDSet(),
		Following:      model.NewIDSet(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, token, nil
}

// Login はメールアドレスとパスワードで認証し、ユーザーとトークンを返す。
// 認証に失敗した場合はどちらが誤っているかを区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	ve := &model.ValidationError{}
	if strings.TrimSpace(email) == "" {
		ve.Add("email", model.MsgBlank)
	}
	if password == "" {
		ve.Add("password", model.MsgBlank)
	}
	if err := ve.OrNil(); err != nil {
		return nil, "", err
	}

	user, err := s.userRepo.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !s.hasher.Verify(password, user.PasswordSalt, user.PasswordDigest) {
		return nil, "", model.NewValidationError("email or password", model.MsgInvalid)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate はトークンを検証し、有効なユーザーを返す。
// トークンが不正、またはユーザーが存在しない場合は未認証エラーを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}
	return s.loadUser(ctx, claims.UserID)
}

// CurrentUser は認証済みユーザーを再取得し、新しいトークンとともに返す。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// UpdateUser は指定されたフィールドのみ更新する。
func (s *Service) UpdateUser(ctx context.Context, userID string, in UpdateUserInput) (*model.User, string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	ve := &model.ValidationError{}
	if in.Username != nil {
		user.Username = model.NormalizeUsername(*in.Username)
		model.ValidateUsername(ve, user.Username)
	}
	if in.Email != nil {
		user.Email = model.NormalizeEmail(*in.Email)
		model.ValidateEmail(ve, user.Email)
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
		if s.sanitizer != nil {
			user.Bio = s.sanitizer.SanitizeText(user.Bio)
		}
	}
	if in.Image != nil {
		image := strings.TrimSpace(*in.Image)
		if err := security.ValidateImageURL(image); err != nil {
			ve.Add("image", model.MsgInvalid)
		}
		user.Image = image
	}
	if in.Password != nil {
		if *in.Password == "" {
			ve.Add("password", model.MsgBlank)
		} else {
			salt, err := s.hasher.NewSalt()
			if err != nil {
				return nil, "", err
			}
			user.PasswordSalt = salt
			user.PasswordDigest = s.hasher.Hash(*in.Password, salt)
		}
	}
	if err := s.checkTaken(ctx, ve, user.Username, user.Email, user.ID); err != nil {
		return nil, "", err
	}
	if err := ve.OrNil(); err != nil {
		return nil, "", err
	}

	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to update user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// loadUser はIDでユーザーを取得する。存在しない場合は未認証エラーを返す。
func (s *Service) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// checkTaken はusername/emailが他のユーザーに使われていればveに追加する。
// 同時登録による競合はストアの一意制約で検出される。
func (s *Service) checkTaken(ctx context.Context, ve *model.ValidationError, username, email, selfID string) error {
	if username != "" {
		u, err := s.userRepo.FindByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("failed to find user by username: %w", err)
		}
		if u != nil && u.ID != selfID {
			ve.Add("username", model.MsgTaken)
		}
	}
	if email != "" {
		u, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to find user by email: %w", err)
		}
		if u != nil && u.ID != selfID {
			ve.Add("email", model.MsgTaken)
		}
	}
	return nil
}
