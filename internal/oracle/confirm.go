package oracle

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"horse.fit/weekly/internal/dedup"
)

//go:embed confirm.schema.json
var confirmSchemaJSON string

const (
	confirmSystemPrompt = "你是严谨的行业资讯去重助手，只输出指定 JSON。"
	confirmSampleRunes  = 500
)

const confirmPromptTmpl = `你是行业资讯去重助手。判断两条中文资讯是否“表达的是同一实质事件/事实”，
不是看文字是否完全相同，而是看语义是否等价（同一主体+同一事件+数据/结论近似）。
输出 JSON：{"duplicate": true/false, "reason": "简要说明"}。

A: %s
B: %s
`

type confirmPayload struct {
	Duplicate bool   `json:"duplicate"`
	Reason    string `json:"reason"`
}

// Confirm asks the model whether two items report the same underlying event.
// Errors propagate to the caller, which treats the pair as not duplicate.
func (c *Client) Confirm(ctx context.Context, a, b *dedup.Item) (bool, string, error) {
	prompt := fmt.Sprintf(confirmPromptTmpl, confirmSample(a), confirmSample(b))

	content, err := c.complete(ctx, confirmSystemPrompt, prompt, 0.0, 120)
	if err != nil {
		return false, "", fmt.Errorf("confirm duplicate: %w", err)
	}
	sliced, err := sliceJSONObject(content)
	if err != nil {
		return false, "", fmt.Errorf("confirm duplicate: %w", err)
	}
	if err := validateConfirmPayload([]byte(sliced)); err != nil {
		return false, "", fmt.Errorf("confirm payload: %w", err)
	}

	var payload confirmPayload
	if err := json.Unmarshal([]byte(sliced), &payload); err != nil {
		return false, "", fmt.Errorf("unmarshal confirm payload: %w", err)
	}
	return payload.Duplicate, strings.TrimSpace(payload.Reason), nil
}

func confirmSample(it *dedup.Item) string {
	return truncateRunes(it.Title+"。"+it.Text, confirmSampleRunes)
}
