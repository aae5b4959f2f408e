// Package feed は記事一覧とフォロー中著者のフィードの絞り込み・ページングを組み立てる。
package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/conduit/internal/model"
	"github.com/hitoshi/conduit/internal/repository"
)

// ページングのデフォルト値
const (
	DefaultLimit  = 20
	DefaultOffset = 0
)

// Filters は記事一覧の絞り込み条件。空文字は条件なしを意味する。
type Filters struct {
	Tag       string
	Author    string // 著者のユーザー名
	Favorited string // お気に入り登録者のユーザー名
}

// Page はページング指定。
type Page struct {
	Limit  int
	Offset int
}

// DefaultPage はデフォルトのページング指定を返す。
func DefaultPage() Page {
	return Page{Limit: DefaultLimit, Offset: DefaultOffset}
}

// ParsePage はクエリ文字列のlimit/offsetを解釈する。
// 空文字はデフォルト値、非負整数以外は422となるValidationErrorを返す。
func ParsePage(limit, offset string) (Page, error) {
	page := DefaultPage()
	ve := &model.ValidationError{}

	if limit != "" {
		n, err := strconv.Atoi(strings.TrimSpace(limit))
		if err != nil || n < 0 {
			ve.Add("limit", model.MsgInvalid)
		} else {
			page.Limit = n
		}
	}
	if offset != "" {
		n, err := strconv.Atoi(strings.TrimSpace(offset))
		if err != nil || n < 0 {
			ve.Add("offset", model.MsgInvalid)
		} else {
			page.Offset = n
		}
	}
	if err := ve.OrNil(); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Result は一覧の取得結果。Authorsは記事の著者IDからユーザーへの対応。
type Result struct {
	Articles []*model.Article
	Authors  map[string]*model.User
	Total    int
}

func emptyResult() *Result {
	return &Result{
		Articles: []*model.Article{},
		Authors:  map[string]*model.User{},
	}
}

// BuildQuery は解決済みの識別子とページングからストア向けの条件を組み立てる。
func BuildQuery(tag, authorID, favoritedByID, followerID string, page Page) repository.ArticleQuery {
	return repository.ArticleQuery{
		Tag:               tag,
		AuthorID:          authorID,
		FavoritedByUserID: favoritedByID,
		FollowerID:        followerID,
		Limit:             page.Limit,
		Offset:            page.Offset,
	}
}

// Composer は一覧条件の解決と実行を行う。
type Composer struct {
	userRepo    repository.UserRepository
	articleRepo repository.ArticleRepository
}

// NewComposer はComposerを生成する。
func NewComposer(userRepo repository.UserRepository, articleRepo repository.ArticleRepository) *Composer {
	return &Composer{userRepo: userRepo, articleRepo: articleRepo}
}

// ListArticles は条件に一致する記事を新しい順に返す。
// author/favoritedのユーザー名が存在しない場合はエラーではなく0件を返す。
func (c *Composer) ListArticles(ctx context.Context, filters Filters, page Page) (*Result, error) {
	var authorID, favoritedByID string

	if filters.Author != "" {
		u, err := c.userRepo.FindByUsername(ctx, model.NormalizeUsername(filters.Author))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve author: %w", err)
		}
		if u == nil {
			return emptyResult(), nil
		}
		authorID = u.ID
	}

	if filters.Favorited != "" {
		u, err := c.userRepo.FindByUsername(ctx, model.NormalizeUsername(filters.Favorited))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve favorited user: %w", err)
		}
		if u == nil {
			return emptyResult(), nil
		}
		favoritedByID = u.ID
	}

	return c.run(ctx, BuildQuery(filters.Tag, authorID, favoritedByID, "", page))
}

// Feed は閲覧者がフォローしている著者の記事を新しい順に返す。
// 閲覧者がいない場合は未認証エラーを返す。
func (c *Composer) Feed(ctx context.Context, viewer *model.User, page Page) (*Result, error) {
	if viewer == nil {
		return nil, model.NewUnauthorizedError()
	}
	if viewer.Following.Len() == 0 {
		return emptyResult(), nil
	}
	return c.run(ctx, BuildQuery("", "", "", viewer.ID, page))
}

func (c *Composer) run(ctx context.Context, q repository.ArticleQuery) (*Result, error) {
	total, err := c.articleRepo.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	result := emptyResult()
	result.Total = total
	if total == 0 || q.Limit == 0 {
		return result, nil
	}

	articles, err := c.articleRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	result.Articles = articles

	authors, err := c.userRepo.FindByIDs(ctx, authorIDs(articles))
	if err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}
	result.Authors = authors
	return result, nil
}

// authorIDs は記事の著者IDを重複なしで返す。
func authorIDs(articles []*model.Article) []string {
	set := model.NewIDSet()
	for _, a := range articles {
		set.Add(a.AuthorID)
	}
	return set.Slice()
}
