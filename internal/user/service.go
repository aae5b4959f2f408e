// Package user は公開プロフィールの参照とフォロー操作を提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/repository"
	"github.com/hitoshi/conduit/internal/social"
)

// Service はプロフィールのサービス層。
type Service struct {
	userRepo repository.UserRepository
	social   *social.Manager
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, socialManager *social.Manager) *Service {
	return &Service{
		userRepo: userRepo,
		social:   socialManager,
	}
}

// GetProfile はユーザー名でプロフィール対象のユーザーを取得する。
func (s *Service) GetProfile(ctx context.Context, username string) (*model.User, error) {
	return s.findByUsername(ctx, username)
}

// Follow は対象ユーザーをフォローし、対象ユーザーを返す。既にフォロー済みでもエラーにしない。
func (s *Service) Follow(ctx context.Context, actor *model.User, username string) (*model.User, error) {
	target, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.social.Follow(ctx, actor, target.ID); err != nil {
		return nil, err
	}
	return target, nil
}

// Unfollow は対象ユーザーのフォローを解除し、対象ユーザーを返す。
func (s *Service) Unfollow(ctx context.Context, actor *model.User, username string) (*model.User, error) {
	target, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.social.Unfollow(ctx, actor, target.ID); err != nil {
		return nil, err
	}
	return target, nil
}

func (s *Service) findByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, model.NormalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("profile", username)
	}
	return user, nil
}
