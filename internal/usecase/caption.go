package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// RewriteLength is the budget handed to the rewrite endpoint for posts.
	RewriteLength = 980

	captionLimit   = 1021
	captionCut     = 1018
	captionBoldCut = 1014
	ellipsis       = "..."
	socialMarker   = "📊 "
)

var (
	markdownChars = strings.NewReplacer("*", "", "_", "", "[", "", "]", "")
	htmlEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	blanks        = regexp.MustCompile(`[ \t]+`)
)

// BuildCaption turns rewritten text into the HTML caption of a post:
// a bold first line, then the remaining non-empty lines as paragraphs.
func BuildCaption(text string) string {
	clean := htmlText(markdownChars.Replace(text))

	lines := strings.Split(clean, "\n")
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(htmlEscaper.Replace(strings.TrimSpace(lines[0])))
	b.WriteString("</b>\n\n")

	var rest []string
	for _, line := range lines[1:] {
		if line = strings.TrimSpace(line); line != "" {
			rest = append(rest, htmlEscaper.Replace(line))
		}
	}
	b.WriteString(strings.Join(rest, "\n\n"))
	return b.String()
}

// TruncateCaption keeps a caption within the photo caption limit without
// leaving a broken tag or entity behind.
func TruncateCaption(caption string) string {
	if utf8.RuneCountInString(caption) <= captionLimit {
		return caption
	}

	cut := trimPartial(firstRunes(caption, captionCut))
	if strings.Count(cut, "<b>") > strings.Count(cut, "</b>") {
		cut = trimPartial(firstRunes(caption, captionBoldCut)) + "</b>"
	}
	return cut + ellipsis
}

// PlainCaption strips markup for surfaces that rejected the HTML version.
func PlainCaption(caption string) string {
	return strings.TrimSpace(blanks.ReplaceAllString(htmlText(caption), " "))
}

// SocialCaption formats a stored caption for the social wall: no markup,
// a marker on the headline, blank lines between paragraphs.
func SocialCaption(caption string) string {
	var lines []string
	for _, line := range strings.Split(htmlText(caption), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(lines) == 0 {
			line = socialMarker + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}

// CaptionText returns the text content of a stored caption.
func CaptionText(caption string) string {
	return htmlText(caption)
}

// CaptionTitle returns the first bold run of a caption, or its first line.
func CaptionTitle(caption string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(caption)); err == nil {
		if bold := strings.TrimSpace(doc.Find("b").First().Text()); bold != "" {
			return bold
		}
	}
	first, _, _ := strings.Cut(htmlText(caption), "\n")
	return strings.TrimSpace(first)
}

func htmlText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// trimPartial drops a trailing unterminated tag or entity.
func trimPartial(s string) string {
	if strings.Count(s, "<") > strings.Count(s, ">") {
		if last := strings.LastIndex(s, ">"); last != -1 {
			s = s[:last+1]
		} else {
			s = s[:strings.LastIndex(s, "<")]
		}
	}
	if amp := strings.LastIndex(s, "&"); amp != -1 && amp > strings.LastIndex(s, ";") {
		s = s[:amp]
	}
	return s
}
