// Package seed fills the database with default groups and demo content for development.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"penfeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoPassword is the password of every generated user.
const DemoPassword = "Penfeed-demo-2024!"

// Factory builds demo entities with gofakeit and persists them.
type Factory struct {
	db      *gorm.DB
	faker   *gofakeit.Faker
	rng     *rand.Rand
	maxDays int
	hash    string
}

type FactoryOptions struct {
	// Seed makes generated content reproducible; 0 picks a random seed.
	Seed int64
	// MaxDays spreads post timestamps over this many past days.
	MaxDays int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

func NewFactory(db *gorm.DB, opts FactoryOptions) (*Factory, error) {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 60
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	return &Factory{
		db:      db,
		faker:   gofakeit.New(opts.Seed),
		rng:     rand.New(rand.NewSource(opts.Seed)), // #nosec G404 -- demo data
		maxDays: opts.MaxDays,
		hash:    string(hash),
	}, nil
}

// CreateUser persists a user with a unique fake username.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	name := strings.ToLower(f.faker.FirstName()) + fmt.Sprintf("%04d", f.faker.Number(0, 9999))
	user := &models.User{
		Username: name,
		Email:    name + "@" + f.faker.DomainName(),
		Password: f.hash,
	}
	for _, o := range overrides {
		o(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved post by author with a timestamp in the past, tagged with
// one of groups about half of the time.
func (f *Factory) BuildPost(author *models.User, groups []models.Group) *models.Post {
	age := time.Duration(f.rng.Int63n(int64(f.maxDays) * int64(24*time.Hour)))
	post := &models.Post{
		Text:      f.faker.Paragraph(1, f.faker.Number(1, 4), f.faker.Number(6, 14), " "),
		AuthorID:  author.ID,
		CreatedAt: time.Now().Add(-age),
	}
	if len(groups) > 0 && f.rng.Intn(2) == 0 {
		gid := groups[f.rng.Intn(len(groups))].ID
		post.GroupID = &gid
	}
	return post
}

// CreatePosts persists posts in batches.
func (f *Factory) CreatePosts(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.Omit(clause.Associations).CreateInBatches(posts, 100).Error
}

// CreateComment persists a comment by author on post.
func (f *Factory) CreateComment(post *models.Post, author *models.User) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:    post.ID,
		AuthorID:  author.ID,
		Text:      f.faker.Sentence(f.faker.Number(3, 16)),
		CreatedAt: post.CreatedAt.Add(time.Duration(f.rng.Intn(48*60)) * time.Minute),
	}
	if comment.CreatedAt.After(time.Now()) {
		comment.CreatedAt = time.Now()
	}
	if err := f.db.Omit(clause.Associations).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// Follow stores a follow edge and reports whether it is new. Self-follows are skipped.
func (f *Factory) Follow(user, author *models.User) (bool, error) {
	if user.ID == author.ID {
		return false, nil
	}
	res := f.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{UserID: user.ID, AuthorID: author.ID})
	return res.RowsAffected > 0, res.Error
}
