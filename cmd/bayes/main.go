// Command bayes 训练朴素贝叶斯与补集朴素贝叶斯文本分类器，并对带标签的测试集做并行评估.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc/codes"

	"github.com/wyfcoding/bayes/xerrors"
)

const serviceName = "bayes"

// version 由构建时 -ldflags "-X main.version=..." 注入.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bayes:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode 参数与配置错误返回 2，其余错误返回 1.
func exitCode(err error) int {
	if e, ok := xerrors.FromError(err); ok && e.GRPCCode() == codes.InvalidArgument {
		return 2
	}
	return 1
}
