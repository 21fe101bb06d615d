// Package report renders the weekly markdown digest and reads it back for
// offline post-processing.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	parenOrigLink  = regexp.MustCompile(`[（(]\s*\[原文\]\((https?://[^\s)）]+)\)\s*[)）]$`)
	nestedOrigLink = regexp.MustCompile(`\[原文\]\(\s*\[原文\]\((https?://[^\s)]+)\)\s*\)$`)
	// The guard keeps this from re-matching the (url) of an already-tagged
	// [原文](url) suffix produced by the passes above.
	parenBareLink = regexp.MustCompile(`(^|[^\]])[（(]\s*(https?://[^\s)）]+)\s*[)）]$`)
	trailingLink  = regexp.MustCompile(`(https?://[^\s)）]+)$`)
)

// MDDate renders a date as 8月17日, no leading zeros. Empty for nil.
func MDDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%d月%d日", int(t.Month()), t.Day())
}

// HideLinks rewrites a trailing URL (bare, parenthesized, or already tagged)
// into the canonical [原文](url) suffix.
func HideLinks(line string) string {
	if line == "" {
		return line
	}
	t := strings.TrimRight(line, " \t\n")
	t = parenOrigLink.ReplaceAllString(t, "[原文]($1)")
	t = nestedOrigLink.ReplaceAllString(t, "[原文]($1)")
	t = parenBareLink.ReplaceAllString(t, "${1}[原文](${2})")
	t = trailingLink.ReplaceAllString(t, "[原文]($1)")
	return t
}

// FormatLine builds one digest bullet: optional date prefix, the one-line
// summary, and the tagged source link.
func FormatLine(date *time.Time, summary, link string, withDate bool) string {
	one := strings.TrimSpace(summary)
	d := MDDate(date)
	var line string
	if withDate && d != "" {
		line = strings.TrimSpace(fmt.Sprintf("%s，%s %s", d, one, link))
	} else {
		line = strings.TrimSpace(fmt.Sprintf("%s %s", one, link))
	}
	return HideLinks(line)
}
