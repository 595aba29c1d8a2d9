package service

import (
	"context"
	"errors"
	"html"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"bbs/internal/models"
	"bbs/internal/observability"
	"bbs/internal/pagination"
	"bbs/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxNameLen    = 50
	maxTitleLen   = 250
	maxContentLen = 50000

	// DefaultName is stored when a post is submitted without an author name.
	DefaultName = "anonymous"
)

type BoardService struct {
	repo     repository.BoardRepository
	pageSize int
}

type ListInput struct {
	Page     int
	Criteria models.SearchCriteria
}

type ListResult struct {
	Posts  []models.Post
	Page   pagination.Page
	Window pagination.Window
}

type ArticleInput struct {
	ID       uint
	Page     int
	Criteria models.SearchCriteria
}

type ArticleResult struct {
	Post *models.Post
	// ContentHTML is the escaped content with line breaks turned into <br>.
	ContentHTML string
	Prev        *models.Post
	Next        *models.Post
	Query       string
}

type CreatePostInput struct {
	Name    string
	Title   string
	Content string
	IPAddr  string
}

type UpdatePostInput struct {
	ID      uint
	Name    string
	Title   string
	Content string
}

func NewBoardService(repo repository.BoardRepository, pageSize int) *BoardService {
	if pageSize <= 0 {
		pageSize = pagination.DefaultSize
	}
	return &BoardService{repo: repo, pageSize: pageSize}
}

// List counts the matching posts, clamps the requested page and loads that page.
func (s *BoardService) List(ctx context.Context, in ListInput) (res *ListResult, err error) {
	ctx, end := observability.StartSpan(ctx, "BoardService.List",
		attribute.Int("bbs.page", in.Page),
		attribute.String("bbs.search_type", in.Criteria.Type),
	)
	defer func() { end(err) }()

	count, err := s.repo.CountMatching(ctx, in.Criteria)
	if err != nil {
		return nil, storageError(err)
	}

	page := pagination.New(in.Page, s.pageSize, int(count))
	posts, err := s.repo.ListPage(ctx, in.Criteria, page.Offset(), page.Size)
	if err != nil {
		return nil, storageError(err)
	}

	return &ListResult{
		Posts:  posts,
		Page:   page,
		Window: page.Window(pagination.BlockSize),
	}, nil
}

// Article records a view and loads the post with its neighbours in the same search scope.
// A missing post yields a NOT_FOUND AppError wrapping models.ErrPostNotFound.
func (s *BoardService) Article(ctx context.Context, in ArticleInput) (res *ArticleResult, err error) {
	ctx, end := observability.StartSpan(ctx, "BoardService.Article", attribute.Int64("bbs.post_id", int64(in.ID)))
	defer func() { end(err) }()

	if err := s.repo.IncrementHitCount(ctx, in.ID); err != nil {
		return nil, storageError(err)
	}

	post, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		return nil, storageError(err)
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", in.ID)
	}

	prev, err := s.repo.FindPrev(ctx, in.Criteria, post.ID)
	if err != nil {
		return nil, storageError(err)
	}
	next, err := s.repo.FindNext(ctx, in.Criteria, post.ID)
	if err != nil {
		return nil, storageError(err)
	}

	return &ArticleResult{
		Post:        post,
		ContentHTML: RenderContent(post.Content),
		Prev:        prev,
		Next:        next,
		Query:       NavigationQuery(in.Page, in.Criteria),
	}, nil
}

func (s *BoardService) Create(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, end := observability.StartSpan(ctx, "BoardService.Create")
	defer func() { end(err) }()

	name, title, err := validatePost(in.Name, in.Title, in.Content)
	if err != nil {
		return nil, err
	}

	post = &models.Post{
		Name:    name,
		Title:   title,
		Content: in.Content,
		IPAddr:  in.IPAddr,
	}
	if err := s.repo.Insert(ctx, post); err != nil {
		return nil, storageError(err)
	}
	return post, nil
}

func (s *BoardService) Get(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err)
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// Update replaces the name, title and content of an existing post.
func (s *BoardService) Update(ctx context.Context, in UpdatePostInput) (err error) {
	ctx, end := observability.StartSpan(ctx, "BoardService.Update", attribute.Int64("bbs.post_id", int64(in.ID)))
	defer func() { end(err) }()

	if in.ID == 0 {
		return models.NewBadRequestError("Invalid post ID")
	}
	name, title, err := validatePost(in.Name, in.Title, in.Content)
	if err != nil {
		return err
	}
	return storageError(s.repo.Update(ctx, &models.Post{
		ID:      in.ID,
		Name:    name,
		Title:   title,
		Content: in.Content,
	}))
}

func (s *BoardService) Delete(ctx context.Context, id uint) (err error) {
	ctx, end := observability.StartSpan(ctx, "BoardService.Delete", attribute.Int64("bbs.post_id", int64(id)))
	defer func() { end(err) }()

	if id == 0 {
		return models.NewBadRequestError("Invalid post ID")
	}
	return storageError(s.repo.Delete(ctx, id))
}

// storageError passes AppErrors from the repository through and wraps anything else as INTERNAL_ERROR.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

// IsNotFound reports whether err means the post does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrPostNotFound)
}

func validatePost(name, title, content string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", "", models.NewValidationError("Name too long (max 50 characters)")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", "", models.NewValidationError("Title too long (max 250 characters)")
	}

	if strings.TrimSpace(content) == "" {
		return "", "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return "", "", models.NewValidationError("Content too long (max 50000 characters)")
	}
	return name, title, nil
}

// NavigationQuery rebuilds the list query string: page=<page>, plus schType and the
// URL-encoded kwd when a keyword is present.
func NavigationQuery(page int, criteria models.SearchCriteria) string {
	var b strings.Builder
	b.WriteString("page=")
	b.WriteString(strconv.Itoa(page))
	if criteria.Keyword != "" {
		b.WriteString("&schType=")
		b.WriteString(url.QueryEscape(criteria.Type))
		b.WriteString("&kwd=")
		b.WriteString(url.QueryEscape(criteria.Keyword))
	}
	return b.String()
}

var lineBreaks = strings.NewReplacer("\r\n", "<br>", "\n", "<br>")

// RenderContent escapes content for HTML and turns each newline into <br>.
func RenderContent(content string) string {
	return lineBreaks.Replace(html.EscapeString(content))
}
