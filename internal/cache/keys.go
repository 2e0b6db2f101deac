package cache

import (
	"fmt"
	"time"
)

// IndexTTL is the default lifetime of a cached index page.
const IndexTTL = 300 * time.Second

const indexPageKeyFormat = "feed:index:page:%d"

// IndexPageKey is the cache key for a requested index page.
func IndexPageKey(page int) string {
	return fmt.Sprintf(indexPageKeyFormat, page)
}
