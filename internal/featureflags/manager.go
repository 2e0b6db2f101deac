// Package featureflags evaluates FEATURE_FLAGS entries such as "live_feed=on,image_uploads=25%".
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	LiveFeed     = "live_feed"
	ImageUploads = "image_uploads"
)

// defaults apply to known flags the configuration leaves out.
var defaults = map[string]string{
	LiveFeed:     "on",
	ImageUploads: "on",
}

type Manager struct {
	flags map[string]string
}

// NewManager parses a comma-separated name=value list. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	flags := make(map[string]string, len(defaults))
	for k, v := range defaults {
		flags[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" || value == "" {
			continue
		}
		flags[name] = value
	}
	return &Manager{flags: flags}
}

// Enabled evaluates name for userID. Values are on/true/1, off/false/0 or N%;
// percentage rollouts are stable per user and exclude anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Gate answers 404 when name is off for the caller. userID extracts the caller from the request.
func (m *Manager) Gate(name string, userID func(*fiber.Ctx) uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Enabled(name, userID(c)) {
			return fiber.NewError(fiber.StatusNotFound, "feature "+name+" is not enabled")
		}
		return c.Next()
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
