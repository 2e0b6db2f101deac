// Command seed fills the database with demo users, posts, comments and follows.
package main

import (
	"flag"
	"log"

	"penfeed/internal/config"
	"penfeed/internal/database"
	"penfeed/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 150, "Number of posts to create")
	shouldClean := flag.Bool("clean", false, "Delete users, posts, comments and follows before seeding")
	randSeed := flag.Int64("seed", 0, "Seed for generated content (0 = random)")
	flag.Parse()

	log.Printf("Seeding: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	sum, err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		Factory:     seed.FactoryOptions{Seed: *randSeed},
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d posts, %d comments, %d follows", sum.Users, sum.Posts, sum.Comments, sum.Follows)
	log.Printf("All demo users have the password: %s", seed.DemoPassword)
}
