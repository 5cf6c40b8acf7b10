// seccompgen 为最小托管运行时沙箱生成 Secure Computing 过滤器。
//
// 用法：
//
//	seccompgen [-v] out.bpf out.pfc
//
// out.bpf 写入原始 sock_filter 指令数组，out.pfc 写入同一策略的
// 可读文本。退出码为 0 时两份产物都已写出；非 0 时两个路径都不可信。
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/zqzqsb/seccompgen/pkg/platform"
	"github.com/zqzqsb/seccompgen/pkg/profile"
	"github.com/zqzqsb/seccompgen/pkg/seccomp/libseccomp"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] out.bpf out.pfc\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// 所有组件都把错误向上传递，这里是唯一的报告和退出点
	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func run(bpfPath, pfcPath string) error {
	p := profile.Minimal()
	logrus.Debugf("policy: %d rules, default action %s", len(p.Rules), p.DefaultAction)

	if err := libseccomp.Generate(platform.Assumptions(), p, bpfPath, pfcPath); err != nil {
		return err
	}
	logrus.Debugf("wrote %s and %s", bpfPath, pfcPath)
	return nil
}
