package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// Context carries everything the weekly template needs.
type Context struct {
	SiteTitle   string
	Year        int
	Week        int
	Timezone    string
	WindowStart string
	WindowEnd   string
	GeneratedAt string
	Buckets     Buckets
}

const weeklyTemplate = `# {{.SiteTitle}} · {{.Year}} 年第 {{printf "%02d" .Week}} 周

> 时区 {{.Timezone}} ｜ 窗口 {{.WindowStart}} ~ {{.WindowEnd}} ｜ 生成于 {{.GeneratedAt}}

## 一、要闻速览

### 国内
{{range .Buckets.NewsCN}}- {{.Text}}
{{else}}- 本周暂无。
{{end}}
### 海外
{{range .Buckets.NewsOverseas}}- {{.Text}}
{{else}}- 本周暂无。
{{end}}
## 二、产品/市场数据
{{range .Buckets.Market}}- {{.Text}}
{{else}}- 本周暂无。
{{end}}
## 三、产品分析

### 移动
{{range .Buckets.ProductMobile}}- {{if .GameType}}【{{.GameType}}】{{end}}{{.Text}}
{{else}}- 本周暂无。
{{end}}
### PC/主机
{{range .Buckets.ProductPCConsole}}- {{if .GameType}}【{{.GameType}}】{{end}}{{.Text}}
{{else}}- 本周暂无。
{{end}}
## 四、方法论学习
{{range .Buckets.Method}}- {{.Text}}
{{else}}- 本周暂无。
{{end}}`

var weeklyTpl = template.Must(template.New("weekly").Parse(weeklyTemplate))

// Render produces the weekly digest markdown.
func Render(ctx Context) (string, error) {
	var b strings.Builder
	if err := weeklyTpl.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("render weekly template: %w", err)
	}
	return b.String(), nil
}

// DocName is the canonical file name of a week's digest.
func DocName(year, week int) string {
	return fmt.Sprintf("%d-W%02d.md", year, week)
}

// WriteDocs stores the digest under docsDir and appends the week to the
// index (once).
func WriteDocs(docsDir, md string, year, week int) (string, error) {
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return "", fmt.Errorf("create docs dir: %w", err)
	}

	name := DocName(year, week)
	path := filepath.Join(docsDir, name)
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write weekly doc: %w", err)
	}

	indexPath := filepath.Join(docsDir, "index.md")
	index := "# 周报索引\n\n"
	if existing, err := os.ReadFile(indexPath); err == nil {
		index = string(existing)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read index: %w", err)
	}

	line := fmt.Sprintf("- [%d年第 %02d 周](%s)\n", year, week, name)
	if !strings.Contains(index, line) {
		if err := os.WriteFile(indexPath, []byte(index+line), 0o644); err != nil {
			return "", fmt.Errorf("update index: %w", err)
		}
	}
	return path, nil
}

// BuildContext fills the template context from the run window.
func BuildContext(siteTitle, timezone string, now, windowStart, windowEnd time.Time, buckets Buckets) Context {
	year, week := now.ISOWeek()
	return Context{
		SiteTitle:   siteTitle,
		Year:        year,
		Week:        week,
		Timezone:    timezone,
		WindowStart: windowStart.Format("2006-01-02"),
		WindowEnd:   windowEnd.Format("2006-01-02"),
		GeneratedAt: now.Format("2006-01-02 15:04 MST"),
		Buckets:     buckets,
	}
}
