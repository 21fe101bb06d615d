package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	brPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
	wsPattern = regexp.MustCompile(`\s+`)

	mdImagePattern    = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinkPattern     = regexp.MustCompile(`\[([^\]]+)\]\(https?://[^\s)]+\)`)
	bareURLPattern    = regexp.MustCompile(`(https?://\S+|www\.\S+)`)
	imageLinePattern  = regexp.MustCompile(`(?im)^\s*(图片|image|gif)?\s*$`)
	emptyMDRefPattern = regexp.MustCompile(`(?m)^\s*\[\s*[^\]]*\s*\]\(\s*\)\s*$`)
	referencesPattern = regexp.MustCompile(`(?is)(?:^|\n)\s*(参考|References)\s*[\s\S]*$`)
	parenURLPattern   = regexp.MustCompile(`[\(（]\s*(?:https?://\S+|www\.\S+)\s*[\)）]`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]+`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)

	wechatURLPattern = regexp.MustCompile(`(https?://mp\.weixin\.qq\.com)/s/([A-Za-z0-9_-]+)`)
	querySuffix      = regexp.MustCompile(`[?#].*$`)
)

// TextFromHTML extracts plain text from an HTML fragment. Line breaks become
// spaces and runs of whitespace collapse.
func TextFromHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	withBreaks := brPattern.ReplaceAllString(html, "\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(withBreaks))
	if err != nil {
		// Malformed enough that goquery gave up; fall back to raw text.
		return strings.TrimSpace(wsPattern.ReplaceAllString(withBreaks, " "))
	}
	return strings.TrimSpace(wsPattern.ReplaceAllString(doc.Text(), " "))
}

// SanitizeForOracle strips markdown image tags, link targets, bare URLs,
// trailing reference sections and filler lines so the classifier sees prose.
func SanitizeForOracle(s string) string {
	if s == "" {
		return ""
	}
	s = mdImagePattern.ReplaceAllString(s, "")
	s = mdLinkPattern.ReplaceAllString(s, "$1")
	s = bareURLPattern.ReplaceAllString(s, "")
	s = imageLinePattern.ReplaceAllString(s, "")
	s = emptyMDRefPattern.ReplaceAllString(s, "")
	s = referencesPattern.ReplaceAllString(s, "")
	s = parenURLPattern.ReplaceAllString(s, "")
	s = spaceRunPattern.ReplaceAllString(s, " ")
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// StripURLs removes bare URLs from text.
func StripURLs(s string) string {
	return bareURLPattern.ReplaceAllString(s, "")
}

// NormalizeURL canonicalizes a link for identity comparison. WeChat article
// links reduce to their /s/<id> form; everything else loses query and
// fragment.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if strings.Contains(u, "mp.weixin.qq.com") {
		if m := wechatURLPattern.FindStringSubmatch(u); m != nil {
			return m[1] + "/s/" + m[2]
		}
	}
	return querySuffix.ReplaceAllString(u, "")
}
