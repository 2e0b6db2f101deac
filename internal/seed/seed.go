package seed

import (
	"fmt"
	"log/slog"

	"penfeed/internal/middleware"
	"penfeed/internal/models"

	"gorm.io/gorm"
)

// Options configure a demo seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	Factory     FactoryOptions
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Follows  int
}

// Seed creates default groups, users, posts spread across them, comments and follow edges.
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	if opts.ShouldClean {
		if err := Clean(db); err != nil {
			return nil, err
		}
	}
	if err := DefaultGroupsSeed(db); err != nil {
		return nil, err
	}

	var groups []models.Group
	if err := db.Order("id").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	f, err := NewFactory(db, opts.Factory)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		posts = append(posts, f.BuildPost(users[f.rng.Intn(len(users))], groups))
	}
	if err := f.CreatePosts(posts); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)

	for _, p := range posts {
		for n := f.rng.Intn(3); n > 0; n-- {
			if _, err := f.CreateComment(p, users[f.rng.Intn(len(users))]); err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}
	}

	for _, u := range users {
		for n := f.rng.Intn(4); n > 0; n-- {
			created, err := f.Follow(u, users[f.rng.Intn(len(users))])
			if err != nil {
				return nil, fmt.Errorf("create follow: %w", err)
			}
			if created {
				sum.Follows++
			}
		}
	}

	middleware.Logger.Info("seed complete",
		slog.Int("users", sum.Users), slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments), slog.Int("follows", sum.Follows))
	return sum, nil
}

// Clean deletes all content rows, children first. Groups are kept.
func Clean(db *gorm.DB) error {
	for _, m := range []any{&models.Comment{}, &models.Follow{}, &models.Post{}, &models.User{}} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("clean %T: %w", m, err)
		}
	}
	return nil
}
