package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/hitoshi/conduit/internal/model"
)

// MemoryStore はプロセス内で完結するストア。
// STORE_DRIVER=memory での起動とパッケージ横断のテストで使用する。
// 返却する値は常に複製であり、呼び出し側の変更はストアに影響しない。
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]*model.User
	articles map[string]*memoryArticle
	comments map[string]*memoryComment
}

type memoryArticle struct {
	article *model.Article
	seq     int64
}

type memoryComment struct {
	comment *model.Comment
	seq     int64
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*model.User),
		articles: make(map[string]*memoryArticle),
		comments: make(map[string]*memoryComment),
	}
}

// Users はUserRepositoryとしてのビューを返す。
func (s *MemoryStore) Users() *MemoryUserRepo { return &MemoryUserRepo{s: s} }

// Articles はArticleRepositoryとしてのビューを返す。
func (s *MemoryStore) Articles() *MemoryArticleRepo { return &MemoryArticleRepo{s: s} }

// Comments はCommentRepositoryとしてのビューを返す。
func (s *MemoryStore) Comments() *MemoryCommentRepo { return &MemoryCommentRepo{s: s} }

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Favorites = u.Favorites.Clone()
	c.Following = u.Following.Clone()
	return &c
}

func cloneArticle(a *model.Article) *model.Article {
	c := *a
	c.TagList = slices.Clone(a.TagList)
	if c.TagList == nil {
		c.TagList = []string{}
	}
	return &c
}

func cloneComment(c *model.Comment) *model.Comment {
	cc := *c
	return &cc
}

// MemoryUserRepo はMemoryStore上のユーザーリポジトリ。
type MemoryUserRepo struct {
	s *MemoryStore
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if u, ok := r.s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *MemoryUserRepo) findBy(match func(*model.User) bool) *model.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

// FindByUsername はユーザー名でユーザーを検索する。
func (r *MemoryUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Username == username }), nil
}

// FindByEmail はメールアドレスでユーザーを検索する。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Email == email }), nil
}

// FindByIDs は複数IDのユーザーをまとめて取得する。
func (r *MemoryUserRepo) FindByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			result[id] = cloneUser(u)
		}
	}
	return result, nil
}

// uniqueUserViolation はusername/emailの重複を検査する。selfIDのユーザーは除外する。
func (r *MemoryUserRepo) uniqueUserViolation(user *model.User, selfID string) error {
	ve := &model.ValidationError{}
	for id, u := range r.s.users {
		if id == selfID {
			continue
		}
		if u.Username == user.Username {
			ve.Add("username", model.MsgTaken)
		}
		if u.Email == user.Email {
			ve.Add("email", model.MsgTaken)
		}
	}
	return ve.OrNil()
}

// Create はユーザーを作成する。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return fmt.Errorf("failed to insert user: duplicate id %s", user.ID)
	}
	if err := r.uniqueUserViolation(user, ""); err != nil {
		return err
	}

	stored := cloneUser(user)
	if stored.Favorites == nil {
		stored.Favorites = model.NewIDSet()
	}
	if stored.Following == nil {
		stored.Following = model.NewIDSet()
	}
	r.s.users[user.ID] = stored
	return nil
}

// Update はプロフィールと認証情報を更新する。集合は変更しない。
func (r *MemoryUserRepo) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	if err := r.uniqueUserViolation(user, user.ID); err != nil {
		return err
	}

	current.Username = user.Username
	current.Email = user.Email
	current.Bio = user.Bio
	current.Image = user.Image
	current.PasswordSalt = user.PasswordSalt
	current.PasswordDigest = user.PasswordDigest
	current.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *MemoryUserRepo) mutate(userID string, fn func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	fn(u)
	return nil
}

// AddFavorite はお気に入り集合に記事を追加する。
func (r *MemoryUserRepo) AddFavorite(_ context.Context, userID, articleID string) error {
	return r.mutate(userID, func(u *model.User) { u.Favorites.Add(articleID) })
}

// RemoveFavorite はお気に入り集合から記事を除く。
func (r *MemoryUserRepo) RemoveFavorite(_ context.Context, userID, articleID string) error {
	return r.mutate(userID, func(u *model.User) { u.Favorites.Remove(articleID) })
}

// CountFavoriters は記事をお気に入りに含むユーザー数を数える。
func (r *MemoryUserRepo) CountFavoriters(_ context.Context, articleID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, u := range r.s.users {
		if u.Favorites.Contains(articleID) {
			n++
		}
	}
	return n, nil
}

// AddFollowing はフォロー集合にユーザーを追加する。
func (r *MemoryUserRepo) AddFollowing(_ context.Context, userID, targetID string) error {
	return r.mutate(userID, func(u *model.User) { u.Following.Add(targetID) })
}

// RemoveFollowing はフォロー集合からユーザーを除く。
func (r *MemoryUserRepo) RemoveFollowing(_ context.Context, userID, targetID string) error {
	return r.mutate(userID, func(u *model.User) { u.Following.Remove(targetID) })
}

// MemoryArticleRepo はMemoryStore上の記事リポジトリ。
type MemoryArticleRepo struct {
	s *MemoryStore
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *MemoryArticleRepo) FindByID(_ context.Context, id string) (*model.Article, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if a, ok := r.s.articles[id]; ok {
		return cloneArticle(a.article), nil
	}
	return nil, nil
}

// FindBySlug はslugで記事を取得する。見つからない場合はnilを返す。
func (r *MemoryArticleRepo) FindBySlug(_ context.Context, slug string) (*model.Article, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.articles {
		if a.article.Slug == slug {
			return cloneArticle(a.article), nil
		}
	}
	return nil, nil
}

// Create は記事を作成する。
func (r *MemoryArticleRepo) Create(_ context.Context, article *model.Article) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.articles[article.ID]; ok {
		return fmt.Errorf("failed to insert article: duplicate id %s", article.ID)
	}
	for _, a := range r.s.articles {
		if a.article.Slug == article.Slug {
			return model.NewValidationError("slug", model.MsgTaken)
		}
	}
	r.s.articles[article.ID] = &memoryArticle{article: cloneArticle(article), seq: r.s.nextSeq()}
	return nil
}

// Update は記事の本文系フィールドを更新する。
func (r *MemoryArticleRepo) Update(_ context.Context, article *model.Article) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.articles[article.ID]
	if !ok {
		return fmt.Errorf("article not found: %s", article.ID)
	}
	a.article.Title = article.Title
	a.article.Description = article.Description
	a.article.Body = article.Body
	a.article.TagList = slices.Clone(article.TagList)
	a.article.UpdatedAt = article.UpdatedAt
	return nil
}

// Delete は記事を削除する。コメントとお気に入りも取り除く。
func (r *MemoryArticleRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.articles[id]; !ok {
		return fmt.Errorf("article not found: %s", id)
	}
	delete(r.s.articles, id)
	for cid, c := range r.s.comments {
		if c.comment.ArticleID == id {
			delete(r.s.comments, cid)
		}
	}
	for _, u := range r.s.users {
		u.Favorites.Remove(id)
	}
	return nil
}

// UpdateFavoritesCount はお気に入り数を書き込み、更新後の記事を返す。
func (r *MemoryArticleRepo) UpdateFavoritesCount(_ context.Context, id string, count int) (*model.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.articles[id]
	if !ok {
		return nil, nil
	}
	a.article.FavoritesCount = count
	return cloneArticle(a.article), nil
}

// matching はロック取得済みの状態で条件に一致する記事を新しい順に返す。
func (r *MemoryArticleRepo) matching(q ArticleQuery) []*memoryArticle {
	var favoritedBy, follower *model.User
	if q.FavoritedByUserID != "" {
		favoritedBy = r.s.users[q.FavoritedByUserID]
	}
	if q.FollowerID != "" {
		follower = r.s.users[q.FollowerID]
	}

	var out []*memoryArticle
	for _, a := range r.s.articles {
		art := a.article
		if q.Tag != "" && !slices.Contains(art.TagList, q.Tag) {
			continue
		}
		if q.AuthorID != "" && art.AuthorID != q.AuthorID {
			continue
		}
		if q.FavoritedByUserID != "" && (favoritedBy == nil || !favoritedBy.Favorites.Contains(art.ID)) {
			continue
		}
		if q.FollowerID != "" && (follower == nil || !follower.Following.Contains(art.AuthorID)) {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].article, out[j].article
		if !ai.CreatedAt.Equal(aj.CreatedAt) {
			return ai.CreatedAt.After(aj.CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

// List は条件に一致する記事を作成日時の降順で返す。
func (r *MemoryArticleRepo) List(_ context.Context, q ArticleQuery) ([]*model.Article, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.matching(q)
	start := min(max(q.Offset, 0), len(all))
	end := start + min(max(q.Limit, 0), len(all)-start)

	articles := make([]*model.Article, 0, end-start)
	for _, a := range all[start:end] {
		articles = append(articles, cloneArticle(a.article))
	}
	return articles, nil
}

// Count はページングを適用する前の一致件数を返す。
func (r *MemoryArticleRepo) Count(_ context.Context, q ArticleQuery) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.matching(q)), nil
}

// ListIDs は全記事のIDを作成順に返す。
func (r *MemoryArticleRepo) ListIDs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := make([]*memoryArticle, 0, len(r.s.articles))
	for _, a := range r.s.articles {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	ids := make([]string, len(all))
	for i, a := range all {
		ids[i] = a.article.ID
	}
	return ids, nil
}

// DistinctTags は記事に付与されたタグを重複なしで返す。
func (r *MemoryArticleRepo) DistinctTags(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	set := model.NewIDSet()
	for _, a := range r.s.articles {
		for _, tag := range a.article.TagList {
			set.Add(tag)
		}
	}
	return set.Slice(), nil
}

// MemoryCommentRepo はMemoryStore上のコメントリポジトリ。
type MemoryCommentRepo struct {
	s *MemoryStore
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *MemoryCommentRepo) FindByID(_ context.Context, id string) (*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if c, ok := r.s.comments[id]; ok {
		return cloneComment(c.comment), nil
	}
	return nil, nil
}

// Create はコメントを作成する。
func (r *MemoryCommentRepo) Create(_ context.Context, comment *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.articles[comment.ArticleID]; !ok {
		return fmt.Errorf("failed to insert comment: article not found: %s", comment.ArticleID)
	}
	r.s.comments[comment.ID] = &memoryComment{comment: cloneComment(comment), seq: r.s.nextSeq()}
	return nil
}

// ListByArticle は記事のコメントを作成日時の降順で返す。
func (r *MemoryCommentRepo) ListByArticle(_ context.Context, articleID string) ([]*model.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*memoryComment
	for _, c := range r.s.comments {
		if c.comment.ArticleID == articleID {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		ci, cj := matched[i].comment, matched[j].comment
		if !ci.CreatedAt.Equal(cj.CreatedAt) {
			return ci.CreatedAt.After(cj.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	comments := make([]*model.Comment, 0, len(matched))
	for _, c := range matched {
		comments = append(comments, cloneComment(c.comment))
	}
	return comments, nil
}

// Delete は指定IDのコメントを削除する。
func (r *MemoryCommentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.comments[id]; !ok {
		return fmt.Errorf("comment not found: %s", id)
	}
	delete(r.s.comments, id)
	return nil
}

// compile-time interface check
var (
	_ UserRepository    = (*MemoryUserRepo)(nil)
	_ ArticleRepository = (*MemoryArticleRepo)(nil)
	_ CommentRepository = (*MemoryCommentRepo)(nil)
)
