package libseccomp

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zqzqsb/seccompgen/pkg/platform"
	"github.com/zqzqsb/seccompgen/pkg/policy"
	"github.com/zqzqsb/seccompgen/pkg/seccomp"
)

// Generate 是完整的线性流水线：
// 校验平台假设 → 校验策略 → 编译 → 导出两种产物 → 写文件 → 释放上下文。
// 平台假设在处理任何规则之前检查；两种产物都在内存中生成完毕后才
// 接触文件系统，编译阶段的失败不会留下任何文件。
// 返回错误时调用方必须把两个输出路径都视为不可用。
func Generate(assumptions []platform.Assumption, p *policy.Policy, bpfPath, pfcPath string) error {
	if err := platform.Verify(assumptions); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	c, err := Compile(p)
	if err != nil {
		return err
	}
	defer c.Close()

	bpfData, err := c.BPF()
	if err != nil {
		return err
	}
	pfcData, err := c.PFC()
	if err != nil {
		return err
	}

	// 写盘前确认二进制产物确实可以解码
	if _, err := seccomp.ParseFilter(bytes.NewReader(bpfData)); err != nil {
		return fmt.Errorf("generated program: %w", err)
	}

	if err := os.WriteFile(bpfPath, bpfData, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", bpfPath, err)
	}
	if err := os.WriteFile(pfcPath, pfcData, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", pfcPath, err)
	}
	return nil
}
