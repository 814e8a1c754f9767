package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reHeading    = regexp.MustCompile(`^(={2,6})\s*(.*?)\s*=+\s*$`)
	reComment    = regexp.MustCompile(`(?s)<!--.*?-->`)
	reRefPaired  = regexp.MustCompile(`(?s)<ref[^>/]*>.*?</ref>`)
	reRefSelf    = regexp.MustCompile(`<ref[^>]*/>`)
	reSmall      = regexp.MustCompile(`(?s)<small[^>]*>.*?</small>`)
	reTemplate   = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	reLinkPiped  = regexp.MustCompile(`\[\[[^\[\]|]*\|([^\[\]]*)\]\]`)
	reLinkPlain  = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)
	reExtLink    = regexp.MustCompile(`\[https?://[^\s\]]+\s*([^\]]*)\]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// quoteLines returns the raw list lines of the quotations section(s): the
// section whose level-2 heading matches one of sectionTitles, including any
// nested subsections, up to the next heading at the same or shallower level.
// Only top-level list items count; deeper "**" items carry attribution and
// variant annotations, not quotes.
func quoteLines(rawContent string, sectionTitles []string) []string {
	var lines []string
	inSection := false

	for _, line := range strings.Split(rawContent, "\n") {
		if m := reHeading.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			if level <= 2 {
				inSection = matchesSection(title, sectionTitles)
			}
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(line, "*") && !strings.HasPrefix(line, "**") {
			item := strings.TrimSpace(strings.TrimLeft(line, "*:# "))
			if item != "" {
				lines = append(lines, item)
			}
		}
	}
	return lines
}

func matchesSection(title string, sectionTitles []string) bool {
	for _, want := range sectionTitles {
		if strings.EqualFold(title, want) {
			return true
		}
	}
	return false
}

// CleanCandidate reduces one wikitext list line to plaintext: comments,
// references, templates and trailing <small> annotations are dropped with
// their content, wiki links keep their display text, and whatever HTML
// remains is stripped down to its text.
func CleanCandidate(line string) string {
	s := reComment.ReplaceAllString(line, "")
	s = reRefPaired.ReplaceAllString(s, "")
	s = reRefSelf.ReplaceAllString(s, "")
	s = reSmall.ReplaceAllString(s, "")

	// Templates can nest; strip inside out.
	for reTemplate.MatchString(s) {
		s = reTemplate.ReplaceAllString(s, "")
	}

	s = reLinkPiped.ReplaceAllString(s, "$1")
	s = reLinkPlain.ReplaceAllString(s, "$1")
	s = reExtLink.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "'''", "")
	s = strings.ReplaceAll(s, "''", "")

	if strings.ContainsRune(s, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}

	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
