package validation

import (
	"errors"
	"regexp"
	"strings"
)

var groupSlugRegex = regexp.MustCompile(`^[a-z0-9_-]{3,50}$`)

// Slugs that would shadow top-level routes.
var reservedGroupSlugs = map[string]struct{}{
	"admin":   {},
	"auth":    {},
	"cache":   {},
	"create":  {},
	"follow":  {},
	"group":   {},
	"groups":  {},
	"health":  {},
	"media":   {},
	"metrics": {},
	"posts":   {},
	"profile": {},
	"swagger": {},
	"ws":      {},
}

// ValidateGroupSlug validates group slug format and reserved names.
func ValidateGroupSlug(slug string) error {
	if !groupSlugRegex.MatchString(slug) {
		return errors.New("slug must be 3-50 characters of lowercase letters, numbers, '_' or '-'")
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return errors.New("slug cannot start or end with a hyphen")
	}
	if _, reserved := reservedGroupSlugs[slug]; reserved {
		return errors.New("slug is reserved")
	}
	return nil
}
