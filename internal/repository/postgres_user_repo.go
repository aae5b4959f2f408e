package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/conduit/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// お気に入りとフォローは favorites / follows テーブルで集合として保持する。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, bio, image, password_salt, password_digest, created_at, updated_at`

type userRow struct {
	ID             string    `db:"id"`
	Username       string    `db:"username"`
	Email          string    `db:"email"`
	Bio            string    `db:"bio"`
	Image          string    `db:"image"`
	PasswordSalt   string    `db:"password_salt"`
	PasswordDigest string    `db:"password_digest"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (row *userRow) toModel() *model.User {
	return &model.User{
		ID:             row.ID,
		Username:       row.Username,
		Email:          row.Email,
		Bio:            row.Bio,
		Image:          row.Image,
		PasswordSalt:   row.PasswordSalt,
		PasswordDigest: row.PasswordDigest,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func newUserRow(u *model.User) *userRow {
	return &userRow{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Bio:            u.Bio,
		Image:          u.Image,
		PasswordSalt:   u.PasswordSalt,
		PasswordDigest: u.PasswordDigest,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user := row.toModel()
	if err := r.loadSets(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// loadSets はお気に入り集合とフォロー集合を読み込む。
func (r *PostgresUserRepo) loadSets(ctx context.Context, user *model.User) error {
	var favorites []string
	if err := r.db.SelectContext(ctx, &favorites,
		`SELECT article_id FROM favorites WHERE user_id = $1`, user.ID,
	); err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	var following []string
	if err := r.db.SelectContext(ctx, &following,
		`SELECT followee_id FROM follows WHERE follower_id = $1`, user.ID,
	); err != nil {
		return fmt.Errorf("failed to load following: %w", err)
	}

	user.Favorites = model.NewIDSet(favorites...)
	user.Following = model.NewIDSet(following...)
	return nil
}

// FindByIDs は複数IDのユーザーをまとめて取得する。
// 記事やコメントの著者表示に使うため、集合は読み込まない。
func (r *PostgresUserRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	result := make(map[string]*model.User, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return result, nil
	}

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(valid),
	); err != nil {
		return nil, fmt.Errorf("failed to find users by IDs: %w", err)
	}

	for i := range rows {
		u := rows[i].toModel()
		result[u.ID] = u
	}
	return result, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (id, username, email, bio, image, password_salt, password_digest, created_at, updated_at)
		 VALUES (:id, :username, :email, :bio, :image, :password_salt, :password_digest, :created_at, :updated_at)`,
		newUserRow(user),
	)
	if err != nil {
		if verr := translateUniqueViolation(err); verr != err {
			return verr
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はプロフィールと認証情報を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	_, err := r.db.NamedExecContext(ctx,
		`UPDATE users SET
		    username = :username,
		    email = :email,
		    bio = :bio,
		    image = :image,
		    password_salt = :password_salt,
		    password_digest = :password_digest,
		    updated_at = :updated_at
		 WHERE id = :id`,
		newUserRow(user),
	)
	if err != nil {
		if verr := translateUniqueViolation(err); verr != err {
			return verr
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// AddFavorite はお気に入り集合に記事を追加する。
func (r *PostgresUserRepo) AddFavorite(ctx context.Context, userID, articleID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, article_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, articleID,
	)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite はお気に入り集合から記事を除く。
func (r *PostgresUserRepo) RemoveFavorite(ctx context.Context, userID, articleID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND article_id = $2`,
		userID, articleID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// CountFavoriters は記事をお気に入りに含むユーザー数を数える。
func (r *PostgresUserRepo) CountFavoriters(ctx context.Context, articleID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n,
		`SELECT count(*) FROM favorites WHERE article_id = $1`, articleID,
	); err != nil {
		return 0, fmt.Errorf("failed to count favoriters: %w", err)
	}
	return n, nil
}

// AddFollowing はフォロー集合にユーザーを追加する。
func (r *PostgresUserRepo) AddFollowing(ctx context.Context, userID, targetID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, targetID,
	)
	if err != nil {
		return fmt.Errorf("failed to add following: %w", err)
	}
	return nil
}

// RemoveFollowing はフォロー集合からユーザーを除く。
func (r *PostgresUserRepo) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		userID, targetID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove following: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
