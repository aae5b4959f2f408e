package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/conduit/internal/middleware"
	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/view"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, username string) (*model.User, error)
	// Follow と Unfollow は actor のフォロー集合を更新し、対象ユーザーを返す。
	Follow(ctx context.Context, actor *model.User, username string) (*model.User, error)
	Unfollow(ctx context.Context, actor *model.User, username string) (*model.User, error)
}

// ProfileHandler は公開プロフィールとフォロー操作のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type profileResponse struct {
	Profile view.ProfileView `json:"profile"`
}

// Get はプロフィールを返す。
// GET /api/profiles/{username}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	viewer := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, profileResponse{Profile: view.ProjectProfile(target, viewer)})
}

// Follow はユーザーをフォローする。
// POST /api/profiles/{username}/follow
func (h *ProfileHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, h.service.Follow)
}

// Unfollow はフォローを解除する。
// DELETE /api/profiles/{username}/follow
func (h *ProfileHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, h.service.Unfollow)
}

func (h *ProfileHandler) changeFollow(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor *model.User, username string) (*model.User, error),
) {
	actor := currentUser(w, r)
	if actor == nil {
		return
	}

	target, err := op(r.Context(), actor, chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Profile: view.ProjectProfile(target, actor)})
}
