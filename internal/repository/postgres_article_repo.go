package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/conduit/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sqlx.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sqlx.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

const articleColumns = `a.id, a.slug, a.title, a.description, a.body, a.tag_list, a.author_id, a.favorites_count, a.created_at, a.updated_at`

type articleRow struct {
	ID             string         `db:"id"`
	Slug           string         `db:"slug"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Body           string         `db:"body"`
	TagList        pq.StringArray `db:"tag_list"`
	AuthorID       string         `db:"author_id"`
	FavoritesCount int            `db:"favorites_count"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (row *articleRow) toModel() *model.Article {
	tags := []string(row.TagList)
	if tags == nil {
		tags = []string{}
	}
	return &model.Article{
		ID:             row.ID,
		Slug:           row.Slug,
		Title:          row.Title,
		Description:    row.Description,
		Body:           row.Body,
		TagList:        tags,
		AuthorID:       row.AuthorID,
		FavoritesCount: row.FavoritesCount,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	if !isUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.id = $1`, id)
}

// FindBySlug はslugで記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	return r.findOne(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.slug = $1`, slug)
}

func (r *PostgresArticleRepo) findOne(ctx context.Context, query, arg string) (*model.Article, error) {
	var row articleRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	return row.toModel(), nil
}

// Create は記事を作成する。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, slug, title, description, body, tag_list, author_id, favorites_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		article.ID, article.Slug, article.Title, article.Description, article.Body,
		pq.Array(article.TagList), article.AuthorID, article.FavoritesCount,
		article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		if verr := translateUniqueViolation(err); verr != err {
			return verr
		}
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// Update は記事の本文系フィールドを更新する。slugと著者は変更しない。
func (r *PostgresArticleRepo) Update(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET
		    title = $2,
		    description = $3,
		    body = $4,
		    tag_list = $5,
		    updated_at = $6
		 WHERE id = $1`,
		article.ID, article.Title, article.Description, article.Body,
		pq.Array(article.TagList), article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return nil
}

// Delete は記事を削除する。
func (r *PostgresArticleRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("article not found: %s", id)
	}
	return nil
}

// UpdateFavoritesCount はお気に入り数を書き込み、更新後の記事を返す。
func (r *PostgresArticleRepo) UpdateFavoritesCount(ctx context.Context, id string, count int) (*model.Article, error) {
	var row articleRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE articles a SET favorites_count = $2 WHERE a.id = $1 RETURNING `+articleColumns,
		id, count,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update favorites count: %w", err)
	}
	return row.toModel(), nil
}

// articleWhere は絞り込み条件のWHERE句とパラメータを組み立てる。
func articleWhere(q ArticleQuery) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Tag != "" {
		add("a.tag_list @> ARRAY[$%d]::text[]", q.Tag)
	}
	if q.AuthorID != "" {
		add("a.author_id = $%d", q.AuthorID)
	}
	if q.FavoritedByUserID != "" {
		add("EXISTS (SELECT 1 FROM favorites f WHERE f.article_id = a.id AND f.user_id = $%d)", q.FavoritedByUserID)
	}
	if q.FollowerID != "" {
		add("a.author_id IN (SELECT followee_id FROM follows WHERE follower_id = $%d)", q.FollowerID)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List は条件に一致する記事を作成日時の降順で返す。
func (r *PostgresArticleRepo) List(ctx context.Context, q ArticleQuery) ([]*model.Article, error) {
	where, args := articleWhere(q)
	args = append(args, q.Limit, q.Offset)
	query := `SELECT ` + articleColumns + ` FROM articles a` + where +
		fmt.Sprintf(` ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var rows []articleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	articles := make([]*model.Article, 0, len(rows))
	for i := range rows {
		articles = append(articles, rows[i].toModel())
	}
	return articles, nil
}

// Count はページングを適用する前の一致件数を返す。
func (r *PostgresArticleRepo) Count(ctx context.Context, q ArticleQuery) (int, error) {
	where, args := articleWhere(q)

	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM articles a`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

// ListIDs は全記事のIDを作成順に返す。
func (r *PostgresArticleRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM articles ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list article IDs: %w", err)
	}
	return ids, nil
}

// DistinctTags は記事に付与されたタグを重複なしで返す。
func (r *PostgresArticleRepo) DistinctTags(ctx context.Context) ([]string, error) {
	tags := []string{}
	if err := r.db.SelectContext(ctx, &tags,
		`SELECT DISTINCT tag FROM articles, unnest(tag_list) AS tag ORDER BY tag`,
	); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
