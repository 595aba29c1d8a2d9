package seed

import (
	"context"
	"fmt"
	"time"

	"bbs/internal/cache"
	"bbs/internal/middleware"
	"bbs/internal/models"

	"gorm.io/gorm"
)

// Seeder fills the board with generated or fixture posts.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	dryRun  bool
}

// NewSeeder binds a seeder to db. db may be nil for a dry run.
func NewSeeder(db *gorm.DB, opts SeedOptions) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts), dryRun: opts.DryRun}
}

// ClearAll removes every post. A dry run leaves the table alone.
func (s *Seeder) ClearAll() error {
	if s.dryRun {
		return nil
	}
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error; err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}
	s.invalidateLists()
	middleware.Logger.Info("Cleared all posts")
	return nil
}

// Seed stores n generated posts and then the fixture posts. Generated posts are backdated,
// so inserting them first keeps ids in creation order.
func (s *Seeder) Seed(n int, fx *Fixture) (generated, fixtures int, err error) {
	if n > 0 {
		posts, err := s.SeedPosts(n)
		if err != nil {
			return 0, 0, err
		}
		generated = len(posts)
	}
	if fx != nil {
		fixtures, err = s.SeedFixture(fx)
		if err != nil {
			return generated, 0, err
		}
	}
	return generated, fixtures, nil
}

// SeedPosts generates and stores n fake posts.
func (s *Seeder) SeedPosts(n int) ([]*models.Post, error) {
	posts := s.factory.BuildPosts(n)
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	s.invalidateLists()
	middleware.Logger.Info("Seeded posts", "count", len(posts), "dry_run", s.dryRun)
	return posts, nil
}

// SeedFixture stores the fixture posts in file order, stamped with the current time.
func (s *Seeder) SeedFixture(fx *Fixture) (int, error) {
	now := time.Now()
	posts := make([]*models.Post, len(fx.Posts))
	for i := range fx.Posts {
		p := fx.Posts[i]
		p.CreatedAt = now
		p.UpdatedAt = now
		posts[i] = &p
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return 0, fmt.Errorf("seed fixture: %w", err)
	}
	s.invalidateLists()
	middleware.Logger.Info("Seeded fixture posts", "count", len(posts), "dry_run", s.dryRun)
	return len(posts), nil
}

func (s *Seeder) invalidateLists() {
	if s.dryRun {
		return
	}
	cache.BumpListGeneration(context.Background())
}
