// Package filter holds the cheap pre-classification quality gates: the
// minimum-length check and a promotional-content heuristic.
package filter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// adWords each add one point when present anywhere in title or body.
var adWords = []string{
	"报名", "报名通道", "扫码", "二维码", "添加微信", "加微信", "VX", "VX：", "V：", "咨询",
	"优惠", "折扣", "团购", "到店", "限时", "仅需", "私信", "合作", "转发抽奖", "抽奖",
	"直播预告", "公开课", "沙龙", "峰会", "购票", "订阅", "投放", "招商", "招募", "征稿",
}

var (
	urlPattern      = regexp.MustCompile(`https?://`)
	phonePattern    = regexp.MustCompile(`\b1[3-9]\d{9}\b`)
	wechatPattern   = regexp.MustCompile(`(?i)(?:vx|v信|wx|微信|加微|VX[:：])`)
	bangingPattern  = regexp.MustCompile(`[!！]{2,}`)
	shortBodyLength = 120
)

// AdScore rates how promotional an item looks. Phone numbers and contact
// handles weigh double; everything else adds one point per signal.
func AdScore(title, text string) int {
	t := title + " " + text
	score := 0
	if utf8.RuneCountInString(text) < shortBodyLength {
		score++
	}
	if urlPattern.MatchString(t) {
		score++
	}
	if phonePattern.MatchString(t) {
		score += 2
	}
	if wechatPattern.MatchString(t) {
		score += 2
	}
	if bangingPattern.MatchString(t) {
		score++
	}
	for _, w := range adWords {
		if strings.Contains(t, w) {
			score++
		}
	}
	return score
}

// TooShort reports whether the plain body text is under the acceptance floor.
func TooShort(text string, minLength int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < minLength
}
