// Package seed provides helpers to create demo and test posts for the board.
// These helpers are intended for development and testing only.
package seed

import (
	"sort"
	"time"

	"bbs/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// SeedOptions tunes the generated data.
type SeedOptions struct {
	// Seed fixes the fake data generator; 0 picks a time-based seed.
	Seed int64
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// BatchSize bounds the rows per INSERT.
	BatchSize int
	// DryRun assigns synthetic IDs instead of writing.
	DryRun bool
}

// Factory builds posts and persists them to the database.
type Factory struct {
	db    *gorm.DB
	opts  SeedOptions
	faker *gofakeit.Faker
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), nextID: 1000}
}

// BuildPost constructs a fake post without persisting it.
func (f *Factory) BuildPost(overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Name:     f.faker.FirstName(),
		Title:    f.faker.Sentence(5),
		Content:  f.faker.Paragraph(2, 3, 8, "\n"),
		IPAddr:   f.faker.IPv4Address(),
		HitCount: f.faker.Number(0, 500),
	}

	// realistic created_at spread
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	post.CreatedAt = time.Now().Add(-back)
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildPosts constructs n fake posts, oldest first so IDs follow creation time.
func (f *Factory) BuildPosts(n int) []*models.Post {
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, f.BuildPost())
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	return posts
}

// CreatePostsBatch persists multiple posts in batched INSERTs.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		return nil
	}
	return f.db.CreateInBatches(posts, f.opts.BatchSize).Error
}
