package seed

import (
	_ "embed"
	"fmt"

	"penfeed/internal/models"
	"penfeed/internal/validation"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed groups.yml
var defaultGroupsYAML []byte

// GroupSpec is one entry of groups.yml.
type GroupSpec struct {
	Title       string `yaml:"title"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
}

// DefaultGroups returns the groups shipped with the binary.
func DefaultGroups() ([]GroupSpec, error) {
	return ParseGroups(defaultGroupsYAML)
}

// ParseGroups decodes a YAML list of groups and validates every slug.
func ParseGroups(data []byte) ([]GroupSpec, error) {
	var specs []GroupSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if err := validation.ValidateGroupSlug(s.Slug); err != nil {
			return nil, fmt.Errorf("group %q: %w", s.Slug, err)
		}
		if s.Title == "" {
			return nil, fmt.Errorf("group %q: title is required", s.Slug)
		}
		if _, dup := seen[s.Slug]; dup {
			return nil, fmt.Errorf("group %q: duplicate slug", s.Slug)
		}
		seen[s.Slug] = struct{}{}
	}
	return specs, nil
}

// Groups upserts specs by slug, refreshing title and description of existing rows.
func Groups(db *gorm.DB, specs []GroupSpec) error {
	for _, s := range specs {
		group := models.Group{Title: s.Title, Slug: s.Slug, Description: s.Description}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description"}),
		}).Create(&group).Error
		if err != nil {
			return fmt.Errorf("seed group %s: %w", s.Slug, err)
		}
	}
	return nil
}

// DefaultGroupsSeed upserts the embedded default groups.
func DefaultGroupsSeed(db *gorm.DB) error {
	specs, err := DefaultGroups()
	if err != nil {
		return err
	}
	return Groups(db, specs)
}
