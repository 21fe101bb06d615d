package oracle

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"horse.fit/weekly/internal/classify"
)

//go:embed analysis.schema.json
var analysisSchemaJSON string

// Analysis is the classifier payload after coercion into the closed sets.
type Analysis struct {
	Category   classify.Category
	Region     classify.Region
	Platform   classify.Platform
	Summary    string
	Tags       []string
	Confidence float64
	Reason     string
	GameType   string
}

type rawAnalysis struct {
	Category     string   `json:"category"`
	Region       string   `json:"region"`
	PlatformType int      `json:"platform_type"`
	Summary      string   `json:"summary"`
	Confidence   rawConf  `json:"confidence"`
	Tags         []string `json:"tags"`
	Reason       string   `json:"reason"`
	GameType     string   `json:"game_type"`
}

type rawConf struct {
	Category float64 `json:"category"`
	Region   float64 `json:"region"`
}

const analyzeSystemPrompt = "你是严谨的行业研究助理，擅长结构化输出。"

var summaryQuotes = regexp.MustCompile(`^[“"']+|[”"']+$`)

// Analyze classifies and summarizes one article. It retries transient
// failures and malformed payloads up to the attempt budget; callers fall back
// to the deterministic classifier when it errors out.
func (c *Client) Analyze(ctx context.Context, title, text string, priorExpertise []string) (*Analysis, error) {
	prompt := c.buildAnalyzePrompt(title, text, priorExpertise)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		analysis, err := c.analyzeOnce(ctx, prompt, title, text)
		if err == nil {
			return analysis, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Str("title", title).Msg("article analysis attempt failed")
	}
	return nil, fmt.Errorf("analyze article after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) analyzeOnce(ctx context.Context, prompt, title, text string) (*Analysis, error) {
	content, err := c.complete(ctx, analyzeSystemPrompt, prompt, 0.2, 300)
	if err != nil {
		return nil, err
	}
	sliced, err := sliceJSONObject(content)
	if err != nil {
		return nil, err
	}
	if err := validateAnalysisPayload([]byte(sliced)); err != nil {
		return nil, fmt.Errorf("analysis payload: %w", err)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(sliced), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal analysis payload: %w", err)
	}
	return c.coerce(raw, title, text), nil
}

// coerce folds out-of-set labels back into the closed enums and fills the
// platform from keywords when the model returned 0.
func (c *Client) coerce(raw rawAnalysis, title, text string) *Analysis {
	category := classify.ParseCategory(raw.Category, raw.Tags, c.enableIgnore)
	platform := classify.ParsePlatform(raw.PlatformType)
	if platform == classify.PlatformUnknown {
		platform = classify.InferPlatform(title, text)
	}

	summary := summaryQuotes.ReplaceAllString(strings.TrimSpace(raw.Summary), "")
	if summary == "" {
		summary = classify.Summarize(text, 60, 90)
	}

	confidence := raw.Confidence.Category
	if confidence <= 0 {
		confidence = 0.6
	}

	gameType := ""
	if category == classify.CategoryProduct && platform == classify.PlatformMobile {
		gameType = strings.TrimSpace(raw.GameType)
	}

	return &Analysis{
		Category:   category,
		Region:     classify.ParseRegion(raw.Region),
		Platform:   platform,
		Summary:    summary,
		Tags:       raw.Tags,
		Confidence: confidence,
		Reason:     strings.TrimSpace(raw.Reason),
		GameType:   gameType,
	}
}

func (c *Client) buildAnalyzePrompt(title, text string, priorExpertise []string) string {
	var b strings.Builder

	b.WriteString("请阅读以下文章，完成两个任务并只输出一个 JSON：\n")
	b.WriteString("1) 分类：\n")
	if c.enableIgnore {
		b.WriteString("   - category: 'news'(要闻速览) | 'product'(产品分析) | 'market'(产品/市场数据) | 'method'(方法论学习) | 'ignore'(无关/招聘/广告/活动/声明)\n")
	} else {
		b.WriteString("   - category: 'news' | 'product' | 'market' | 'method'\n")
	}
	b.WriteString("   - region: 'cn'(国内) | 'overseas'(海外) | 'none'(不适用/不确定)\n")
	b.WriteString("   - platform_type: 1=移动、2=PC、3=主机、0=未知\n")
	b.WriteString("2) 摘要：\n")
	b.WriteString("   - 输出一句中文行业资讯，≤200字；市场数据类需体现来源。\n")
	b.WriteString("3) 游戏类型（仅当 category='product' 且 platform_type=1 时输出）：\n")
	b.WriteString("   - game_type：如 SLG、卡牌 等；无法判断给空串。\n")
	if len(priorExpertise) > 0 {
		fmt.Fprintf(&b, "该来源更擅长方向：%s。仅作为轻微先验，不要违背事实。\n", strings.Join(priorExpertise, ","))
	}
	b.WriteString("请严格输出 JSON。\n")
	fmt.Fprintf(&b, "标题：%s\n", title)
	fmt.Fprintf(&b, "正文：%s\n", truncateRunes(text, c.textMaxLen))
	return b.String()
}
