// Package bootstrap wires the process-wide dependencies shared by the binaries.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"penfeed/internal/cache"
	"penfeed/internal/config"
	"penfeed/internal/database"
	"penfeed/internal/middleware"
	"penfeed/internal/models"
	"penfeed/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization.
type Options struct {
	SeedGroups bool
}

// InitRuntime connects to the database and Redis, then runs the optional bootstrap steps.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if err := Prepare(cfg, db, opts); err != nil {
		return nil, nil, err
	}
	return db, rdb, nil
}

// Prepare runs the bootstrap steps that only need a database.
func Prepare(cfg *config.Config, db *gorm.DB, opts Options) error {
	if err := EnsureDevStaff(cfg, db); err != nil {
		return fmt.Errorf("failed to bootstrap development staff account: %w", err)
	}
	if opts.SeedGroups {
		if err := seed.DefaultGroupsSeed(db); err != nil {
			return fmt.Errorf("failed to seed default groups: %w", err)
		}
	}
	return nil
}

// EnsureDevStaff creates or promotes the development staff account when
// DEV_BOOTSTRAP_STAFF is set in the development profile.
func EnsureDevStaff(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if cfg.Env != "development" || !cfg.DevBootstrapStaff {
		return nil
	}

	username := strings.TrimSpace(cfg.DevStaffUsername)
	if username == "" {
		username = "staff"
	}
	if cfg.DevStaffPassword == "" {
		return errors.New("DEV_STAFF_PASSWORD must be set when DEV_BOOTSTRAP_STAFF is enabled")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevStaffPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash staff password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var staff models.User
		findErr := tx.Where("username = ?", username).First(&staff).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			staff = models.User{
				Username: username,
				Email:    strings.ToLower(username) + "@penfeed.local",
				Password: string(hash),
				IsStaff:  true,
			}
			return tx.Create(&staff).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&staff).Update("is_staff", true).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development staff account ensured", slog.String("username", username))
	return nil
}
