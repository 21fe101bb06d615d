package textsim

import "testing"

func TestNormalize_StripsMarkupAndPunctuation(t *testing.T) {
	t.Parallel()

	got := Normalize("Hello <b>World</b>", "line one<br/>line   two, done.")
	if got != "hello world line one line two done" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalize_RemovesParentheticals(t *testing.T) {
	t.Parallel()

	got := Normalize("米哈游发布新作（内部消息）", "全球上线 (beta)")
	if got != "米哈游发布新作 全球上线" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalize_KeepsPercentages(t *testing.T) {
	t.Parallel()

	got := Normalize("营收增长１２％？", "同比增长 12% 创新高!")
	if got != "营收增长１２%？ 同比增长 12% 创新高" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	if got := Normalize("", ""); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestShingles_Sliding(t *testing.T) {
	t.Parallel()

	set := Shingles("abcd efgh i", 8)
	// whitespace is stripped first, so the base string is "abcdefghi" (9 runes)
	if len(set) != 2 {
		t.Fatalf("expected 2 shingles, got %d", len(set))
	}
	for _, want := range []string{"abcdefgh", "bcdefghi"} {
		if _, ok := set[want]; !ok {
			t.Fatalf("missing shingle %q", want)
		}
	}
}

func TestShingles_ShortAndEmpty(t *testing.T) {
	t.Parallel()

	set := Shingles("abc", 8)
	if len(set) != 1 {
		t.Fatalf("expected whole-string shingle, got %d entries", len(set))
	}
	if _, ok := set["abc"]; !ok {
		t.Fatalf("expected %q as the single shingle", "abc")
	}

	if got := Shingles("", 8); len(got) != 0 {
		t.Fatalf("expected empty set for empty input, got %d entries", len(got))
	}
}

func TestJaccard_Bounds(t *testing.T) {
	t.Parallel()

	a := Shingles("游戏行业政策发布落地执行", 4)
	b := Shingles("游戏行业政策发布全面执行", 4)

	if got := Jaccard(a, a); got != 1 {
		t.Fatalf("expected self-jaccard 1, got %f", got)
	}
	if got := Jaccard(a, b); got <= 0 || got >= 1 {
		t.Fatalf("expected partial overlap in (0,1), got %f", got)
	}
	if got := Jaccard(a, map[string]struct{}{}); got != 0 {
		t.Fatalf("expected 0 against empty set, got %f", got)
	}
	if got := Jaccard(nil, b); got != 0 {
		t.Fatalf("expected 0 against nil set, got %f", got)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	s := Normalize("版本更新公告", "本次更新包含若干玩法调整与修复")
	first := Fingerprint(s)
	second := Fingerprint(s)
	if first != second {
		t.Fatalf("fingerprint not deterministic: %x vs %x", first, second)
	}
	if Hamming(first, second) != 0 {
		t.Fatalf("expected zero self-distance")
	}
}

func TestFingerprint_SimilarTextsAreClose(t *testing.T) {
	t.Parallel()

	a := Fingerprint(Normalize("某公司季度营收报告", "第三季度营收同比增长百分之十二细节见报告原文"))
	b := Fingerprint(Normalize("某公司季度营收报告", "第三季度营收同比增长百分之十二细节见报告全文"))
	c := Fingerprint(Normalize("独立游戏开发方法论", "小团队如何在一年内完成垂直切片与发行谈判"))

	near := Hamming(a, b)
	far := Hamming(a, c)
	if near >= far {
		t.Fatalf("expected near-duplicate distance (%d) below unrelated distance (%d)", near, far)
	}
	if near > 8 {
		t.Fatalf("expected small distance for near-duplicates, got %d", near)
	}
}

func TestFingerprint_Empty(t *testing.T) {
	t.Parallel()

	if got := Fingerprint(""); got != 0 {
		t.Fatalf("expected zero fingerprint for empty input, got %x", got)
	}
}

func TestHamming(t *testing.T) {
	t.Parallel()

	if got := Hamming(0b1010, 0b0110); got != 2 {
		t.Fatalf("unexpected hamming distance: %d", got)
	}
	if got := Hamming(42, 42); got != 0 {
		t.Fatalf("expected 0 for equal values, got %d", got)
	}
}
