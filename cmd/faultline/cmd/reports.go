package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// reportsCmd 是 reports 命令组，包含报告查询相关的子命令。
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Query archived failure reports",
}

var (
	listService string // 按服务名过滤
	listOffset  int    // 分页偏移
	listLimit   int    // 分页大小
)

// reportsListCmd 列出最近归档的报告。
var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()
		resp, err := client.ListReports(listService, listOffset, listLimit)
		if err != nil {
			return err
		}

		if outputFmt == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT ID\tSERVICE\tLEVEL\tTIME\tMESSAGE")
		for _, rep := range resp.Reports {
			msg := rep.Message
			if len(msg) > 60 {
				msg = msg[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rep.EventID, rep.ServiceName, rep.Level,
				rep.Timestamp.Format(time.RFC3339), msg)
		}
		w.Flush()
		fmt.Printf("\n%d of %d reports\n", len(resp.Reports), resp.Total)
		return nil
	},
}

// reportsGetCmd 查看单个报告的完整内容。
var reportsGetCmd = &cobra.Command{
	Use:   "get <event-id>",
	Short: "Show a single report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient()
		rep, err := client.GetReport(args[0])
		if err != nil {
			return err
		}

		// 单个报告始终以 JSON 输出，切面内容是嵌套结构
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	reportsListCmd.Flags().StringVarP(&listService, "service", "s", "", "按服务名过滤")
	reportsListCmd.Flags().IntVar(&listOffset, "offset", 0, "分页偏移")
	reportsListCmd.Flags().IntVar(&listLimit, "limit", 20, "分页大小")

	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsGetCmd)
	rootCmd.AddCommand(reportsCmd)
}
