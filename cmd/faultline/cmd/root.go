// Package cmd 包含 faultline CLI 工具的所有命令实现
// 使用 cobra 框架构建命令行接口
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 全局命令行标志变量
var (
	cfgFile   string // 配置文件路径
	apiURL    string // 中继服务地址
	outputFmt string // 输出格式（table/json）
)

// rootCmd 是 CLI 的根命令
// 所有子命令都挂载在这个根命令下
var rootCmd = &cobra.Command{
	Use:   "faultline",
	Short: "Faultline - failure report relay CLI",
	Long: `faultline 是用于管理故障报告中继的命令行工具。

使用示例:
  # 查看中继服务状态
  faultline status

  # 列出最近归档的报告
  faultline reports list --service orders

  # 查看单个报告详情
  faultline reports get 7f3c1a2e-...

  # 端到端连通性自检（向中继发送一份合成报告）
  faultline send-test --endpoint https://key@relay.example.com/1`,
}

// Execute 执行根命令
// 这是 CLI 的入口函数，由 main 包调用
func Execute() error {
	return rootCmd.Execute()
}

// init 初始化命令行工具
// 注册全局标志和配置初始化函数
func init() {
	cobra.OnInitialize(initConfig)

	// 注册持久化标志（所有子命令都可使用）
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认为 $HOME/.faultline.yaml）")
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "u", "http://localhost:8090", "中继服务地址")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "输出格式（table、json）")

	// 将标志绑定到 viper 配置
	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig 初始化配置
// 按优先级加载配置：命令行标志 > 环境变量 > 配置文件
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".faultline")
	}

	// 环境变量格式：FAULTLINE_<KEY>，如 FAULTLINE_API_URL
	viper.SetEnvPrefix("FAULTLINE")
	viper.AutomaticEnv()

	// 读取配置文件（如果存在）
	_ = viper.ReadInConfig()
}
