// Package domain 定义了工作单元诊断层的核心领域模型。
package domain

import (
	"errors"
	"reflect"
)

// ErrorMatcher 是错误匹配谓词。
// 用于声明"预期错误"中无法用哨兵值表达的类型匹配，
// 例如 func(err error) bool { var e *ValidationError; return errors.As(err, &e) }。
type ErrorMatcher func(err error) bool

// EntryPoint 表示服务的一个入口点描述符。
// 入口点是服务声明的可调用操作，可附带"预期错误"集合与协议标记。
// 预期错误是业务层面的正常失败（如参数校验失败），不应视为缺陷上报。
type EntryPoint struct {
	// MethodName 是入口点的方法名，如 "get_user"
	MethodName string `json:"method_name"`
	// Expected 是预期错误哨兵集合，通过 errors.Is 匹配（含包装链）
	Expected []error `json:"-"`
	// ExpectedMatch 是预期错误类型谓词集合，通过 errors.As 等方式匹配
	ExpectedMatch []ErrorMatcher `json:"-"`
	// HTTP 标记该入口点是否为 HTTP 风格入口点
	// 仅 HTTP 入口点会在进入阶段采集 request 切面
	HTTP bool `json:"http"`
}

// IsExpected 判断给定错误是否为该入口点声明的预期错误。
// 空的预期集合意味着任何错误都是非预期的。
// 该方法是纯函数，nil 错误始终返回 false，永不 panic。
func (e *EntryPoint) IsExpected(err error) bool {
	if e == nil || err == nil {
		return false
	}
	for _, sentinel := range e.Expected {
		if sentinel != nil && errors.Is(err, sentinel) {
			return true
		}
	}
	for _, match := range e.ExpectedMatch {
		if match != nil && match(err) {
			return true
		}
	}
	return false
}

// ErrorTypeName 返回错误的运行时类型名。
// 指针类型会被解引用，匿名类型回退到完整类型字符串。
// 用于报告消息中标识错误类型（如 "CustomError"）。
func ErrorTypeName(err error) string {
	if err == nil {
		return ""
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
