// Package enrich 提供诊断切面的派生管道。
// 四个相互独立的切面提取器（request/user/tags/extra）各自从
// 工作单元的调用快照派生一类诊断数据，合并进该单元的诊断上下文。
package enrich

import (
	"fmt"
	"regexp"
)

// 默认匹配模式
// user 切面默认提取键名包含 user/email/session 的上下文数据，
// tags 切面默认提取以关联 ID 风格后缀结尾的键。
var (
	// DefaultUserPatterns 是 user 切面的默认键匹配模式
	DefaultUserPatterns = []string{"user", "email", "session"}
	// DefaultTagPatterns 是 tags 切面的默认键匹配模式
	DefaultTagPatterns = []string{"call_id$"}
)

// Matchers 是一组有序的键匹配模式。
// 按声明顺序逐个尝试，首个命中即停止（first-match-wins）。
type Matchers struct {
	patterns []*regexp.Regexp
}

// CompileMatchers 编译有序模式列表。
// 任一模式非法时整体失败，返回包含模式文本的错误。
func CompileMatchers(exprs []string) (*Matchers, error) {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern %q: %w", expr, err)
		}
		patterns = append(patterns, re)
	}
	return &Matchers{patterns: patterns}, nil
}

// Match 判断键是否命中任一模式。
// 顺序扫描，首个命中后跳过剩余模式。
func (m *Matchers) Match(key string) bool {
	if m == nil {
		return false
	}
	for _, re := range m.patterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
