// Package repository provides data access layer implementations for the board.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bbs/internal/cache"
	"bbs/internal/models"
	"bbs/internal/observability"

	"gorm.io/gorm"
)

// BoardRepository defines the interface for board post data operations.
// Lists are ordered newest first (id DESC).
type BoardRepository interface {
	CountMatching(ctx context.Context, criteria models.SearchCriteria) (int64, error)
	ListPage(ctx context.Context, criteria models.SearchCriteria, offset, size int) ([]models.Post, error)
	Insert(ctx context.Context, post *models.Post) error
	// FindByID returns (nil, nil) when the post does not exist.
	FindByID(ctx context.Context, id uint) (*models.Post, error)
	// FindPrev returns the nearest newer post in scope, or (nil, nil).
	FindPrev(ctx context.Context, criteria models.SearchCriteria, id uint) (*models.Post, error)
	// FindNext returns the nearest older post in scope, or (nil, nil).
	FindNext(ctx context.Context, criteria models.SearchCriteria, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	IncrementHitCount(ctx context.Context, id uint) error
}

// boardRepository implements BoardRepository
type boardRepository struct {
	db *gorm.DB
}

// NewBoardRepository creates a new board repository
func NewBoardRepository(db *gorm.DB) BoardRepository {
	return &boardRepository{db: db}
}

func (r *boardRepository) CountMatching(ctx context.Context, criteria models.SearchCriteria) (int64, error) {
	gen, err := cache.ListGeneration(ctx)
	if err != nil {
		return r.countMatching(ctx, criteria)
	}
	return cache.Aside(ctx, cache.ListCountKey(gen, criteria), cache.ListTTL, func() (int64, error) {
		return r.countMatching(ctx, criteria)
	})
}

func (r *boardRepository) countMatching(ctx context.Context, criteria models.SearchCriteria) (int64, error) {
	defer observability.TrackQuery("count", postsTable)()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Scopes(applyCriteria(criteria)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func (r *boardRepository) ListPage(ctx context.Context, criteria models.SearchCriteria, offset, size int) ([]models.Post, error) {
	if offset < 0 {
		offset = 0
	}
	gen, err := cache.ListGeneration(ctx)
	if err != nil {
		return r.listPage(ctx, criteria, offset, size)
	}
	posts, err := cache.Aside(ctx, cache.ListPageKey(gen, criteria, offset, size), cache.ListTTL, func() ([]models.Post, error) {
		return r.listPage(ctx, criteria, offset, size)
	})
	if err != nil {
		return nil, err
	}
	if cache.GetClient() != nil {
		if err := r.refreshHitCounts(ctx, posts); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

type hitCountRow struct {
	ID       uint
	HitCount int
}

// refreshHitCounts overlays live hit counts on a cached page; views do not bump the list generation.
func (r *boardRepository) refreshHitCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	defer observability.TrackQuery("hit_counts", postsTable)()

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	var rows []hitCountRow
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("id", "hit_count").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("refresh hit counts: %w", err)
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.ID] = row.HitCount
	}
	for i := range posts {
		if n, ok := counts[posts[i].ID]; ok {
			posts[i].HitCount = n
		}
	}
	return nil
}

func (r *boardRepository) listPage(ctx context.Context, criteria models.SearchCriteria, offset, size int) ([]models.Post, error) {
	defer observability.TrackQuery("list", postsTable)()

	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Scopes(applyCriteria(criteria)).
		Order("id DESC").
		Limit(size).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *boardRepository) Insert(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", postsTable)()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	cache.BumpListGeneration(ctx)
	return nil
}

func (r *boardRepository) FindByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("find", postsTable)()

	var post models.Post
	err := r.db.WithContext(ctx).Take(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post %d: %w", id, err)
	}
	return &post, nil
}

func (r *boardRepository) FindPrev(ctx context.Context, criteria models.SearchCriteria, id uint) (*models.Post, error) {
	return r.neighbour(ctx, criteria, "id > ?", "id ASC", id)
}

func (r *boardRepository) FindNext(ctx context.Context, criteria models.SearchCriteria, id uint) (*models.Post, error) {
	return r.neighbour(ctx, criteria, "id < ?", "id DESC", id)
}

func (r *boardRepository) neighbour(ctx context.Context, criteria models.SearchCriteria, cond, order string, id uint) (*models.Post, error) {
	defer observability.TrackQuery("neighbour", postsTable)()

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Scopes(applyCriteria(criteria)).
		Where(cond, id).
		Order(order).
		Limit(1).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("find neighbour of post %d: %w", id, err)
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// Update writes the editable fields only. IPAddr and HitCount are never touched.
func (r *boardRepository) Update(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("update", postsTable)()

	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"name":    post.Name,
			"title":   post.Title,
			"content": post.Content,
		})
	if result.Error != nil {
		return fmt.Errorf("update post %d: %w", post.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	cache.BumpListGeneration(ctx)
	return nil
}

func (r *boardRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", postsTable)()

	result := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete post %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.BumpListGeneration(ctx)
	return nil
}

// IncrementHitCount bumps the counter in a single statement so concurrent views are never lost.
func (r *boardRepository) IncrementHitCount(ctx context.Context, id uint) error {
	defer observability.TrackQuery("increment_hit", postsTable)()

	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("increment hit count of post %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

const postsTable = "bbs_posts"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive LIKE pattern matching kwd anywhere.
func containsPattern(kwd string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(kwd)) + "%"
}

// applyCriteria scopes a query to the posts matched by criteria. An empty keyword matches every post.
func applyCriteria(criteria models.SearchCriteria) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if criteria.IsEmpty() {
			return db
		}
		like := containsPattern(criteria.Term())
		switch criteria.Type {
		case models.SearchTitle:
			return db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, like)
		case models.SearchContent:
			return db.Where(`LOWER(content) LIKE ? ESCAPE '\'`, like)
		case models.SearchAuthor:
			return db.Where(`LOWER(name) LIKE ? ESCAPE '\'`, like)
		case models.SearchDate:
			start, end, ok := dateRange(criteria.DateKeyword())
			if !ok {
				return db.Where("1 = 0")
			}
			return db.Where("created_at >= ? AND created_at < ?", start, end)
		default:
			return db.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')`, like, like)
		}
	}
}

// dateRange turns a YYYY, YYYYMM or YYYYMMDD prefix into a half-open [start, end) range.
func dateRange(digits string) (time.Time, time.Time, bool) {
	var layout string
	switch len(digits) {
	case 4:
		layout = "2006"
	case 6:
		layout = "200601"
	case 8:
		layout = "20060102"
	default:
		return time.Time{}, time.Time{}, false
	}
	start, err := time.ParseInLocation(layout, digits, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	var end time.Time
	switch len(digits) {
	case 4:
		end = start.AddDate(1, 0, 0)
	case 6:
		end = start.AddDate(0, 1, 0)
	default:
		end = start.AddDate(0, 0, 1)
	}
	return start, end, true
}
