package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"bbs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boardRepoStub is a stub for repository.BoardRepository.
type boardRepoStub struct {
	countFn     func(context.Context, models.SearchCriteria) (int64, error)
	listPageFn  func(context.Context, models.SearchCriteria, int, int) ([]models.Post, error)
	insertFn    func(context.Context, *models.Post) error
	findByIDFn  func(context.Context, uint) (*models.Post, error)
	findPrevFn  func(context.Context, models.SearchCriteria, uint) (*models.Post, error)
	findNextFn  func(context.Context, models.SearchCriteria, uint) (*models.Post, error)
	updateFn    func(context.Context, *models.Post) error
	deleteFn    func(context.Context, uint) error
	incrementFn func(context.Context, uint) error
}

func (s *boardRepoStub) CountMatching(ctx context.Context, c models.SearchCriteria) (int64, error) {
	return s.countFn(ctx, c)
}
func (s *boardRepoStub) ListPage(ctx context.Context, c models.SearchCriteria, offset, size int) ([]models.Post, error) {
	return s.listPageFn(ctx, c, offset, size)
}
func (s *boardRepoStub) Insert(ctx context.Context, post *models.Post) error {
	return s.insertFn(ctx, post)
}
func (s *boardRepoStub) FindByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.findByIDFn(ctx, id)
}
func (s *boardRepoStub) FindPrev(ctx context.Context, c models.SearchCriteria, id uint) (*models.Post, error) {
	return s.findPrevFn(ctx, c, id)
}
func (s *boardRepoStub) FindNext(ctx context.Context, c models.SearchCriteria, id uint) (*models.Post, error) {
	return s.findNextFn(ctx, c, id)
}
func (s *boardRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *boardRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *boardRepoStub) IncrementHitCount(ctx context.Context, id uint) error {
	return s.incrementFn(ctx, id)
}

func noopBoardRepo() *boardRepoStub {
	return &boardRepoStub{
		countFn:     func(_ context.Context, _ models.SearchCriteria) (int64, error) { return 0, nil },
		listPageFn:  func(_ context.Context, _ models.SearchCriteria, _, _ int) ([]models.Post, error) { return []models.Post{}, nil },
		insertFn:    func(_ context.Context, _ *models.Post) error { return nil },
		findByIDFn:  func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		findPrevFn:  func(_ context.Context, _ models.SearchCriteria, _ uint) (*models.Post, error) { return nil, nil },
		findNextFn:  func(_ context.Context, _ models.SearchCriteria, _ uint) (*models.Post, error) { return nil, nil },
		updateFn:    func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:    func(_ context.Context, _ uint) error { return nil },
		incrementFn: func(_ context.Context, _ uint) error { return nil },
	}
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestBoardService_List(t *testing.T) {
	tests := []struct {
		name           string
		page           int
		count          int64
		wantPage       int
		wantTotalPages int
		wantOffset     int
	}{
		{"Empty board", 1, 0, 0, 0, 0},
		{"Second of three", 2, 25, 2, 3, 10},
		{"Clamped after shrink", 5, 25, 3, 3, 20},
		{"Exact multiple", 10, 100, 10, 10, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := noopBoardRepo()
			repo.countFn = func(_ context.Context, _ models.SearchCriteria) (int64, error) { return tt.count, nil }
			var gotOffset, gotSize int
			repo.listPageFn = func(_ context.Context, _ models.SearchCriteria, offset, size int) ([]models.Post, error) {
				gotOffset, gotSize = offset, size
				return []models.Post{}, nil
			}

			svc := NewBoardService(repo, 10)
			res, err := svc.List(context.Background(), ListInput{Page: tt.page, Criteria: models.NewSearchCriteria("all", "")})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, res.Page.Current)
			assert.Equal(t, tt.wantTotalPages, res.Page.TotalPages)
			assert.Equal(t, tt.wantOffset, gotOffset)
			assert.Equal(t, 10, gotSize)
		})
	}
}

func TestBoardService_List_PassesCriteria(t *testing.T) {
	repo := noopBoardRepo()
	want := models.NewSearchCriteria("title", "go")
	repo.countFn = func(_ context.Context, c models.SearchCriteria) (int64, error) {
		assert.Equal(t, want, c)
		return 1, nil
	}
	repo.listPageFn = func(_ context.Context, c models.SearchCriteria, _, _ int) ([]models.Post, error) {
		assert.Equal(t, want, c)
		return []models.Post{{ID: 1}}, nil
	}

	res, err := NewBoardService(repo, 10).List(context.Background(), ListInput{Page: 1, Criteria: want})
	require.NoError(t, err)
	assert.Len(t, res.Posts, 1)
}

func TestBoardService_List_CountError(t *testing.T) {
	repo := noopBoardRepo()
	dbErr := errors.New("db down")
	repo.countFn = func(_ context.Context, _ models.SearchCriteria) (int64, error) { return 0, dbErr }

	_, err := NewBoardService(repo, 10).List(context.Background(), ListInput{Page: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	assert.Equal(t, "Something went wrong. Please try again.", models.UserMessage(err))
}

func TestBoardService_StorageErrors(t *testing.T) {
	dbErr := errors.New("connection reset")
	repo := noopBoardRepo()
	repo.insertFn = func(_ context.Context, _ *models.Post) error { return dbErr }
	repo.updateFn = func(_ context.Context, _ *models.Post) error { return dbErr }
	repo.deleteFn = func(_ context.Context, id uint) error { return models.NewNotFoundError("Post", id) }
	svc := NewBoardService(repo, 10)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePostInput{Title: "t", Content: "c"})
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	assert.ErrorIs(t, err, dbErr)

	err = svc.Update(ctx, UpdatePostInput{ID: 1, Title: "t", Content: "c"})
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))

	// repository AppErrors keep their code
	err = svc.Delete(ctx, 3)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.True(t, IsNotFound(err))
}

func TestBoardService_Article(t *testing.T) {
	var order []string
	repo := noopBoardRepo()
	repo.incrementFn = func(_ context.Context, _ uint) error {
		order = append(order, "increment")
		return nil
	}
	repo.findByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		order = append(order, "find")
		return &models.Post{ID: id, Content: "line1\n<b>line2</b>", HitCount: 1}, nil
	}
	repo.findPrevFn = func(_ context.Context, _ models.SearchCriteria, id uint) (*models.Post, error) {
		return &models.Post{ID: id + 1}, nil
	}

	svc := NewBoardService(repo, 10)
	res, err := svc.Article(context.Background(), ArticleInput{
		ID:       5,
		Page:     2,
		Criteria: models.NewSearchCriteria("title", "a b&c"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"increment", "find"}, order)
	assert.Equal(t, "line1<br>&lt;b&gt;line2&lt;/b&gt;", res.ContentHTML)
	assert.Equal(t, "line1\n<b>line2</b>", res.Post.Content)
	require.NotNil(t, res.Prev)
	assert.Equal(t, uint(6), res.Prev.ID)
	assert.Nil(t, res.Next)
	assert.Equal(t, "page=2&schType=title&kwd=a+b%26c", res.Query)
}

func TestBoardService_Article_NotFound(t *testing.T) {
	repo := noopBoardRepo()
	repo.incrementFn = func(_ context.Context, id uint) error { return models.NewNotFoundError("Post", id) }
	repo.findByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		t.Fatal("find must not run for a missing post")
		return nil, nil
	}

	_, err := NewBoardService(repo, 10).Article(context.Background(), ArticleInput{ID: 9, Page: 1})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestBoardService_Article_DeletedBetweenIncrementAndFind(t *testing.T) {
	repo := noopBoardRepo()
	repo.findByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return nil, nil }

	_, err := NewBoardService(repo, 10).Article(context.Background(), ArticleInput{ID: 9, Page: 1})
	assert.True(t, IsNotFound(err))
}

func TestBoardService_Create(t *testing.T) {
	var inserted *models.Post
	repo := noopBoardRepo()
	repo.insertFn = func(_ context.Context, p *models.Post) error {
		p.ID = 11
		inserted = p
		return nil
	}

	post, err := NewBoardService(repo, 10).Create(context.Background(), CreatePostInput{
		Title:   "  Hello ",
		Content: "body",
		IPAddr:  "192.0.2.1",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(11), post.ID)
	assert.Equal(t, "Hello", inserted.Title)
	assert.Equal(t, DefaultName, inserted.Name)
	assert.Equal(t, "192.0.2.1", inserted.IPAddr)
	assert.Zero(t, inserted.HitCount)
}

func TestBoardService_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreatePostInput
	}{
		{"Missing title", CreatePostInput{Title: " ", Content: "c"}},
		{"Missing content", CreatePostInput{Title: "t", Content: "\n"}},
		{"Long title", CreatePostInput{Title: strings.Repeat("가", 251), Content: "c"}},
		{"Long content", CreatePostInput{Title: "t", Content: strings.Repeat("x", 50001)}},
		{"Long name", CreatePostInput{Name: strings.Repeat("n", 51), Title: "t", Content: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := noopBoardRepo()
			repo.insertFn = func(_ context.Context, _ *models.Post) error {
				t.Fatal("insert must not run for invalid input")
				return nil
			}
			_, err := NewBoardService(repo, 10).Create(context.Background(), tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestBoardService_Create_MultibyteTitleAtLimit(t *testing.T) {
	_, err := NewBoardService(noopBoardRepo(), 10).Create(context.Background(), CreatePostInput{
		Title:   strings.Repeat("가", 250),
		Content: "c",
	})
	assert.NoError(t, err)
}

func TestBoardService_Update(t *testing.T) {
	var updated *models.Post
	repo := noopBoardRepo()
	repo.updateFn = func(_ context.Context, p *models.Post) error {
		updated = p
		return nil
	}

	err := NewBoardService(repo, 10).Update(context.Background(), UpdatePostInput{ID: 3, Name: "kim", Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, uint(3), updated.ID)
	assert.Equal(t, "kim", updated.Name)
	assert.Empty(t, updated.IPAddr)

	err = NewBoardService(repo, 10).Update(context.Background(), UpdatePostInput{ID: 0, Title: "t", Content: "c"})
	assert.Equal(t, models.CodeBadRequest, models.ErrorCode(err))

	err = NewBoardService(repo, 10).Update(context.Background(), UpdatePostInput{ID: 3, Title: "", Content: "c"})
	assertValidationError(t, err)
}

func TestBoardService_Delete(t *testing.T) {
	repo := noopBoardRepo()
	repo.deleteFn = func(_ context.Context, id uint) error { return models.NewNotFoundError("Post", id) }

	err := NewBoardService(repo, 10).Delete(context.Background(), 4)
	assert.True(t, IsNotFound(err))

	err = NewBoardService(repo, 10).Delete(context.Background(), 0)
	assert.Equal(t, models.CodeBadRequest, models.ErrorCode(err))
}

func TestBoardService_Get(t *testing.T) {
	repo := noopBoardRepo()
	repo.findByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return nil, nil }
	_, err := NewBoardService(repo, 10).Get(context.Background(), 1)
	assert.True(t, IsNotFound(err))
}

func TestNavigationQuery(t *testing.T) {
	assert.Equal(t, "page=3", NavigationQuery(3, models.NewSearchCriteria("title", "")))
	assert.Equal(t, "page=1&schType=all&kwd=go", NavigationQuery(1, models.NewSearchCriteria("all", "go")))
}

func TestNavigationQuery_KeywordRoundTrip(t *testing.T) {
	for _, kwd := range []string{"a&b", " a&b ", "100%", "x=y?z", "한글 검색", "#tag+more", "a/b"} {
		q := NavigationQuery(2, models.NewSearchCriteria("content", kwd))
		values, err := url.ParseQuery(q)
		require.NoError(t, err)
		assert.Equal(t, kwd, values.Get("kwd"))
		assert.Equal(t, "content", values.Get("schType"))
		assert.Equal(t, "2", values.Get("page"))
	}
}

func TestRenderContent(t *testing.T) {
	assert.Equal(t, "a<br>b<br>c", RenderContent("a\nb\r\nc"))
	assert.Equal(t, "&lt;script&gt;", RenderContent("<script>"))
	assert.Equal(t, "", RenderContent(""))
}

func TestNewBoardService_DefaultPageSize(t *testing.T) {
	repo := noopBoardRepo()
	repo.countFn = func(_ context.Context, _ models.SearchCriteria) (int64, error) { return 100, nil }
	var gotSize int
	repo.listPageFn = func(_ context.Context, _ models.SearchCriteria, _, size int) ([]models.Post, error) {
		gotSize = size
		return nil, nil
	}

	res, err := NewBoardService(repo, 0).List(context.Background(), ListInput{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, gotSize)
	assert.Equal(t, 10, res.Page.Size)
}
