package classify

import (
	"regexp"
	"strings"

	"horse.fit/weekly/internal/langdetect"
)

var (
	newsKeywords = []string{
		"政策", "合规", "规则", "调整", "发布", "更新", "报告", "榜单",
		"隐私", "税", "抽成", "分成", "dma", "数据", "趋势",
	}
	productKeywords = []string{
		"玩法", "版本", "上线", "新作", "demo", "评测", "测评", "分析", "定位",
	}
	cnKeywords = []string{
		"中国", "国内", "广州", "上海", "北京", "字节", "腾讯", "米哈游", "taptap",
	}
	overseasKeywords = []string{
		"overseas", "欧美", "美国", "欧洲", "日本", "韩国", "全球", "海外",
		"google", "apple", "steam",
	}

	mobileKeywords = []string{
		"ios", "android", "手游", "mobile", "taptap", "app store", "google play", "测试服手游",
	}
	pcKeywords = []string{
		"steam", "epic", "pc 版", "pc版", "windows", "macos", "mac os", "mac",
	}
	consoleKeywords = []string{
		"switch", "ns版", "ns 版", "ps5", "ps4", "playstation", "xbox", "主机版",
	}
)

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// FallbackVerdict classifies an item without the external oracle. The
// category comes from a keyword scan, the region from keywords first and
// language detection second, and the summary from a sentence-boundary clip.
func FallbackVerdict(title, text string) Verdict {
	t := strings.ToLower(title + " " + text)

	cat := CategoryMethod
	switch {
	case containsAny(t, newsKeywords):
		cat = CategoryNews
	case containsAny(t, productKeywords):
		cat = CategoryProduct
	}

	return Verdict{
		Category:   cat,
		Region:     fallbackRegion(t, text),
		Platform:   InferPlatform(title, text),
		Summary:    Summarize(text, 60, 90),
		Confidence: 0.55,
	}
}

func fallbackRegion(lowered, text string) Region {
	switch {
	case containsAny(lowered, cnKeywords):
		return RegionCN
	case containsAny(lowered, overseasKeywords):
		return RegionOverseas
	}
	switch langdetect.DetectISO6391(text) {
	case "zh":
		return RegionCN
	case "":
		return RegionNone
	default:
		return RegionOverseas
	}
}

// InferPlatform guesses the platform type from keyword hits in the title and
// body, in mobile, PC, console precedence.
func InferPlatform(title, text string) Platform {
	t := strings.ToLower(title + " " + text)
	switch {
	case containsAny(t, mobileKeywords):
		return PlatformMobile
	case containsAny(t, pcKeywords):
		return PlatformPC
	case containsAny(t, consoleKeywords):
		return PlatformConsole
	}
	return PlatformUnknown
}

var (
	summaryWS       = regexp.MustCompile(`\s+`)
	sentenceEndings = map[rune]bool{'。': true, '！': true, '!': true, '？': true, '?': true, '；': true, ';': true}
)

// Summarize clips text to a one-liner between minLen and maxLen runes,
// preferring to cut at the last sentence boundary within maxLen+20.
func Summarize(text string, minLen, maxLen int) string {
	t := strings.TrimSpace(summaryWS.ReplaceAllString(text, " "))
	runes := []rune(t)
	if len(runes) <= maxLen {
		return t
	}
	window := runes
	if len(window) > maxLen+20 {
		window = window[:maxLen+20]
	}
	end := 0
	for i, r := range window {
		if sentenceEndings[r] {
			end = i + 1
		}
	}
	if end >= minLen {
		return string(runes[:end])
	}
	return string(runes[:maxLen])
}
