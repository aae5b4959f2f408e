package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/repository"
	"github.com/hitoshi/conduit/internal/security"
)

// --- モック定義 ---

// mockUserRepo は必要なメソッドだけを差し替えられるUserRepository。
// 差し替えていないメソッドは埋め込んだMemoryUserRepoに委譲する。
type mockUserRepo struct {
	*repository.MemoryUserRepo
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	updateFn      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return m.MemoryUserRepo.FindByEmail(ctx, email)
}

func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return m.MemoryUserRepo.Update(ctx, user)
}

func newTestService() (*Service, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	svc := NewService(store.Users(), NewTokenService("test-secret", time.Hour), security.NewContentSanitizer())
	return svc, store
}

func strPtr(s string) *string { return &s }

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	return ve.Fields
}

func TestRegister_Success(t *testing.T) {
	svc, _ := newTestService()

	user, token, err := svc.Register(context.Background(), RegisterInput{
		Username: "Alice", Email: " Alice@Example.com ", Password: "secret",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if user.Username != "alice" {
		t.Errorf("Username = %q, want %q", user.Username, "alice")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", user.Email, "alice@example.com")
	}
	if user.PasswordDigest == "" || user.PasswordDigest == "secret" {
		t.Errorf("PasswordDigest が不正: %q", user.PasswordDigest)
	}
	if token == "" {
		t.Error("トークンが発行されていない")
	}

	claims, err := svc.tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, user.ID)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
		want map[string]string
	}{
		{
			name: "全項目が空",
			in:   RegisterInput{},
			want: map[string]string{"username": model.MsgBlank, "email": model.MsgBlank, "password": model.MsgBlank},
		},
		{
			name: "ユーザー名に記号",
			in:   RegisterInput{Username: "ali ce!", Email: "a@b.co", Password: "x"},
			want: map[string]string{"username": model.MsgInvalid},
		},
		{
			name: "メールアドレスの形式",
			in:   RegisterInput{Username: "alice", Email: "not-an-email", Password: "x"},
			want: map[string]string{"email": model.MsgInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			_, _, err := svc.Register(context.Background(), tt.in)

			got := validationFields(t, err)
			if len(got) != len(tt.want) {
				t.Fatalf("fields = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("fields[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

// 大文字小文字を区別せずに重複を検出する
func TestRegister_Taken(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "x"}); err != nil {
		t.Fatalf("1人目の登録に失敗: %v", err)
	}

	_, _, err := svc.Register(ctx, RegisterInput{Username: "ALICE", Email: "ALICE@example.com", Password: "x"})
	got := validationFields(t, err)
	if got["username"] != model.MsgTaken || got["email"] != model.MsgTaken {
		t.Errorf("fields = %v, want username/email taken", got)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("正しい認証情報", func(t *testing.T) {
		user, token, err := svc.Login(ctx, "ALICE@example.com", "secret")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if user.ID != registered.ID || token == "" {
			t.Errorf("unexpected login result: user=%+v token=%q", user, token)
		}
	})

	t.Run("パスワード誤り", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice@example.com", "wrong")
		got := validationFields(t, err)
		if got["email or password"] != model.MsgInvalid {
			t.Errorf("fields = %v", got)
		}
	})

	t.Run("未登録のメールアドレス", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "nobody@example.com", "secret")
		got := validationFields(t, err)
		if got["email or password"] != model.MsgInvalid {
			t.Errorf("fields = %v", got)
		}
	})

	t.Run("空の入力", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "", "")
		got := validationFields(t, err)
		if got["email"] != model.MsgBlank || got["password"] != model.MsgBlank {
			t.Errorf("fields = %v", got)
		}
	})
}

func TestLogin_RepositoryError(t *testing.T) {
	store := repository.NewMemoryStore()
	repo := &mockUserRepo{
		MemoryUserRepo: store.Users(),
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}
	svc := NewService(repo, NewTokenService("test-secret", time.Hour), nil)

	_, _, err := svc.Login(context.Background(), "alice@example.com", "secret")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		t.Errorf("DBエラーがValidationErrorとして返された: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, token, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}

	var apiErr *model.APIError
	if _, err := svc.Authenticate(ctx, "garbage"); !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("Authenticate(garbage) error = %v, want UNAUTHORIZED", err)
	}
}

// トークンは有効でもユーザーが存在しない場合は未認証
func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, _ := newTestService()

	token, err := svc.tokens.Issue(&model.User{ID: "ghost", Username: "ghost"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var apiErr *model.APIError
	if _, err := svc.Authenticate(context.Background(), token); !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("Authenticate() error = %v, want UNAUTHORIZED", err)
	}
}

func TestCurrentUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, token, err := svc.CurrentUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if got.Username != "alice" || token == "" {
		t.Errorf("unexpected result: user=%+v token=%q", got, token)
	}
}

func TestUpdateUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	updated, token, err := svc.UpdateUser(ctx, user.ID, UpdateUserInput{
		Bio:      strPtr("I <b>like</b> turtles"),
		Image:    strPtr("https://example.com/alice.png"),
		Password: strPtr("new-secret"),
	})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if token == "" {
		t.Error("トークンが発行されていない")
	}
	if updated.Bio != "I like turtles" {
		t.Errorf("Bio = %q, want %q", updated.Bio, "I like turtles")
	}
	if updated.Image != "https://example.com/alice.png" {
		t.Errorf("Image = %q", updated.Image)
	}
	if updated.Username != "alice" {
		t.Errorf("未指定のUsernameが変更された: %q", updated.Username)
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "new-secret"); err != nil {
		t.Errorf("新しいパスワードでログインできない: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "secret"); err == nil {
		t.Error("古いパスワードでログインできてしまう")
	}
}

func TestUpdateUser_ValidationErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	alice, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("Register(alice) error = %v", err)
	}
	if _, _, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "x"}); err != nil {
		t.Fatalf("Register(bob) error = %v", err)
	}

	t.Run("他人のユーザー名", func(t *testing.T) {
		_, _, err := svc.UpdateUser(ctx, alice.ID, UpdateUserInput{Username: strPtr("Bob")})
		if got := validationFields(t, err); got["username"] != model.MsgTaken {
			t.Errorf("fields = %v", got)
		}
	})

	t.Run("自分のメールアドレスのまま", func(t *testing.T) {
		if _, _, err := svc.UpdateUser(ctx, alice.ID, UpdateUserInput{Email: strPtr("alice@example.com")}); err != nil {
			t.Errorf("UpdateUser() error = %v", err)
		}
	})

	t.Run("内部ネットワークの画像URL", func(t *testing.T) {
		_, _, err := svc.UpdateUser(ctx, alice.ID, UpdateUserInput{Image: strPtr("http://127.0.0.1/x.png")})
		if got := validationFields(t, err); got["image"] != model.MsgInvalid {
			t.Errorf("fields = %v", got)
		}
	})

	t.Run("空のパスワード", func(t *testing.T) {
		_, _, err := svc.UpdateUser(ctx, alice.ID, UpdateUserInput{Password: strPtr("")})
		if got := validationFields(t, err); got["password"] != model.MsgBlank {
			t.Errorf("fields = %v", got)
		}
	})

	t.Run("存在しないユーザー", func(t *testing.T) {
		var apiErr *model.APIError
		_, _, err := svc.UpdateUser(ctx, "ghost", UpdateUserInput{})
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
			t.Errorf("error = %v, want UNAUTHORIZED", err)
		}
	})
}

func TestUpdateUser_RepositoryError(t *testing.T) {
	store := repository.NewMemoryStore()
	repo := &mockUserRepo{
		MemoryUserRepo: store.Users(),
		updateFn: func(ctx context.Context, user *model.User) error {
			return errors.New("db down")
		},
	}
	svc := NewService(repo, NewTokenService("test-secret", time.Hour), nil)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, _, err := svc.UpdateUser(ctx, user.ID, UpdateUserInput{Bio: strPtr("hi")}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
