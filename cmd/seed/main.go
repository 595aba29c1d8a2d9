// Command seed fills the board database with demo posts.
package main

import (
	"context"
	"flag"
	"log"

	"bbs/internal/cache"
	"bbs/internal/config"
	"bbs/internal/database"
	"bbs/internal/seed"

	"gorm.io/gorm"
)

func main() {
	numPosts := flag.Int("posts", 120, "Number of generated posts to create")
	fixture := flag.String("fixture", "", "YAML file with hand-written posts, stored after generated ones")
	shouldClean := flag.Bool("clean", false, "Delete all posts before seeding")
	dryRun := flag.Bool("dry-run", false, "Build posts without writing them")
	seedValue := flag.Int64("seed", 0, "Fake data seed (0 = random)")
	flag.Parse()

	log.Println("Board Seeder")
	log.Printf("Target: %d posts, fixture=%q, clean=%v, dry-run=%v\n", *numPosts, *fixture, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var fx *seed.Fixture
	if *fixture != "" {
		fx, err = seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
	}

	// a dry run only builds posts, so it needs neither the database nor Redis
	var db *gorm.DB
	if !*dryRun {
		db, err = database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() { _ = database.Close(db) }()

		if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}

		// cached list pages are invalidated when Redis is reachable
		cache.InitRedis(cfg.RedisURL)
		defer func() { _ = cache.Close() }()
	}

	s := seed.NewSeeder(db, seed.SeedOptions{Seed: *seedValue, DryRun: *dryRun})

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	generated, fixtures, err := s.Seed(*numPosts, fx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Generated posts: %d, fixture posts: %d", generated, fixtures)

	log.Println("Seeding complete")
}
