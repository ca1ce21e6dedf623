package domain

import (
	"errors"
	"regexp"
	"strings"
)

// MarkerPrefix is the spurious fragment that may be stacked in front of incoming ids.
const MarkerPrefix = "vk_"

// ErrNoArticleID is returned when an article URL carries no content segment.
var ErrNoArticleID = errors.New("article id not found in url")

// msn content urls end with /ar-<id>, /vi-<id>, /gm-<id> or /ss-<id>.
var articleIDExpr = regexp.MustCompile(`/(?:ar|vi|gm|ss)-([A-Za-z0-9]+)(?:[/?#]|$)`)

// Category is a coarse routing tag for secondary channels and social groups.
type Category string

const (
	CategoryDefault Category = "default"
	CategoryFashion Category = "fashion"
)

// ParseCategory maps stored values to a known category; unknown values are default.
func ParseCategory(value string) Category {
	if Category(strings.ToLower(strings.TrimSpace(value))) == CategoryFashion {
		return CategoryFashion
	}
	return CategoryDefault
}

// Article is a scraped item ready to be published.
type Article struct {
	ID         string
	Link       string
	Header     string
	Body       string
	ImagePaths []string
	Source     string
	Category   Category
}

// SeenArticle marks an id that has already been ingested.
type SeenArticle struct {
	ID    string
	Title string
}

// DeliveryRecord describes where an article was published on the primary surface.
type DeliveryRecord struct {
	ID             string
	Caption        string
	MessageRefs    []int64
	AttachmentRefs []string
	Category       Category
}

// NormalizeID strips every leading marker prefix from an id.
func NormalizeID(id string) string {
	for strings.HasPrefix(id, MarkerPrefix) {
		id = strings.TrimPrefix(id, MarkerPrefix)
	}
	return id
}

// ArticleID extracts the canonical article id from a source URL.
func ArticleID(link string) (string, error) {
	match := articleIDExpr.FindStringSubmatch(link)
	if len(match) < 2 {
		return "", ErrNoArticleID
	}
	return match[1], nil
}
