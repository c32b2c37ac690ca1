package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// 运维用的命令行入口：手动新增/删除新闻、查看列表、执行保留策略与补抓图片
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
