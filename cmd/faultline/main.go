// Package main 是 faultline 命令行工具的入口点。
// faultline 是用于管理故障报告中继的 CLI 工具，
// 提供报告查询、端到端连通性自检等操作。
package main

import (
	"os"

	"github.com/oriys/faultline/cmd/faultline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
