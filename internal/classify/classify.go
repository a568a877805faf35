// Package classify 提供错误的预期/非预期分类。
// 入口点可以声明一组"预期错误"（业务层面的正常失败），
// 分类器据此决定报告的严重级别以及是否抑制上报。
package classify

import "github.com/oriys/faultline/internal/domain"

// IsExpected 判断观察到的错误对给定入口点而言是否为预期错误。
// 当且仅当错误匹配入口点声明的预期错误集合（哨兵值经 errors.Is
// 匹配包装链，或类型谓词命中）时返回 true。
// 未声明预期集合的入口点对任何错误都返回 false。
// 纯函数，无副作用，nil 入参安全。
func IsExpected(ep *domain.EntryPoint, err error) bool {
	return ep.IsExpected(err)
}

// Severity 根据分类结果计算报告严重级别。
// 预期错误为 WARNING，非预期错误为 ERROR。
func Severity(ep *domain.EntryPoint, err error) domain.Severity {
	if IsExpected(ep, err) {
		return domain.SeverityWarning
	}
	return domain.SeverityError
}
