package domain

import (
	"errors"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"AA1qZ9xY":          "AA1qZ9xY",
		"vk_AA1qZ9xY":       "AA1qZ9xY",
		"vk_vk_vk_AA1qZ9xY": "AA1qZ9xY",
		"vk_":               "",
		"xvk_AA":            "xvk_AA",
	}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestArticleID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		link string
		want string
	}{
		{"https://www.msn.com/en-us/money/markets/bitcoin-slides-again/ar-AA1qZ9xY", "AA1qZ9xY"},
		{"https://www.msn.com/en-us/money/markets/bitcoin-slides-again/ar-AA1qZ9xY?ocid=msedgntp&cvid=1", "AA1qZ9xY"},
		{"https://www.msn.com/en-us/lifestyle/style/some-look/ss-AB12cd34", "AB12cd34"},
		{"https://www.msn.com/en-us/video/news/clip/vi-AA9Zz", "AA9Zz"},
	}
	for _, tc := range cases {
		got, err := ArticleID(tc.link)
		if err != nil {
			t.Fatalf("ArticleID(%q) error: %v", tc.link, err)
		}
		if got != tc.want {
			t.Fatalf("ArticleID(%q) = %q, want %q", tc.link, got, tc.want)
		}
	}
}

func TestArticleIDRejectsUnknownLayout(t *testing.T) {
	t.Parallel()

	_, err := ArticleID("https://www.msn.com/en-us/money/markets/star-crossed")
	if !errors.Is(err, ErrNoArticleID) {
		t.Fatalf("expected ErrNoArticleID, got %v", err)
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	if ParseCategory("fashion") != CategoryFashion {
		t.Fatalf("expected fashion")
	}
	if ParseCategory(" Fashion ") != CategoryFashion {
		t.Fatalf("expected case-insensitive fashion")
	}
	if ParseCategory("sports") != CategoryDefault {
		t.Fatalf("expected default for unknown category")
	}
}
