package seed

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhinian/blogstore/internal/server/collections"
)

// Defaults builds the base data structure for a brand-new site: one
// super_admin account, the default settings mapping, starter categories
// and tags, and every other collection empty. The admin password is stored
// bcrypt-hashed; the id uses the user_<unix-ms> form so the allocator's
// numeric scan skips it.
func Defaults(now time.Time) (map[string]any, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash default password: %w", err)
	}

	stamp := collections.FormatTime(now)

	return map[string]any{
		"users": []any{
			map[string]any{
				"id":          fmt.Sprintf("user_%d", now.UnixMilli()),
				"username":    "admin",
				"password":    string(hash),
				"role":        "super_admin",
				"email":       "admin@example.com",
				"displayName": "Administrator",
				"status":      "active",
				"createdAt":   stamp,
				"updatedAt":   stamp,
			},
		},
		"settings": map[string]any{
			"siteName":          "My Blog",
			"siteDescription":   "Welcome to my blog",
			"postsPerPage":      12,
			"commentModeration": true,
			"totalWords":        0,
			"totalViews":        0,
			"totalVisitors":     0,
			"startDate":         now.UTC().Format("2006-01-02"),
		},
		"articles": []any{},
		"categories": []any{
			map[string]any{"id": 1, "name": "Tech", "description": "Technical articles", "count": 0},
			map[string]any{"id": 2, "name": "Life", "description": "Everyday notes", "count": 0},
		},
		"tags": []any{
			map[string]any{"id": 1, "name": "JavaScript", "count": 0},
			map[string]any{"id": 2, "name": "Vue", "count": 0},
			map[string]any{"id": 3, "name": "Notes", "count": 0},
		},
		"comments":  []any{},
		"guestbook": []any{},
		"images":    []any{},
		"music":     []any{},
		"videos":    []any{},
		"links":     []any{},
		"apps":      []any{},
		"events":    []any{},
	}, nil
}
