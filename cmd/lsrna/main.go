package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jgbaldwinbrown/lsrna/logger"
	"github.com/jgbaldwinbrown/lsrna/pkg"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if e := lsrna.NewRootCmd().ExecuteContext(ctx); e != nil {
		logger.Error("lsrna failed", zap.Error(e))
		_ = logger.Sync()
		fmt.Fprintln(os.Stderr, e)
		stop()
		os.Exit(1)
	}
}
