// Package libseccomp 通过 libseccomp 把策略编译为两种同步的产物：
// 内核可加载的二进制指令程序和同一组决策的可读文本。
// 两种产物都从同一个过滤器上下文导出，保证语义一致。
package libseccomp

import (
	"bytes"
	"fmt"
	"io"
	"os"

	scmp "github.com/seccomp/libseccomp-golang"

	"github.com/zqzqsb/seccompgen/pkg/policy"
)

// Compiler 持有 libseccomp 的过滤器上下文。
// 上下文由 Compile 创建，必须在所有退出路径上通过 Close 释放。
type Compiler struct {
	filter *scmp.ScmpFilter
}

// Compile 把策略写入一个新的 libseccomp 上下文：
// 默认动作、过滤器级属性、然后逐条添加规则。
// 任何一步失败都会释放上下文并返回具名错误。
func Compile(p *policy.Policy) (*Compiler, error) {
	def, err := toScmpAction(p.DefaultAction)
	if err != nil {
		return nil, fmt.Errorf("default action: %w", err)
	}
	filter, err := scmp.NewFilter(def)
	if err != nil {
		return nil, fmt.Errorf("seccomp filter init: %w", err)
	}
	c := &Compiler{filter: filter}
	if err := c.applyAttributes(p); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.addRules(p.Rules); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close 释放过滤器上下文，可以安全地重复调用
func (c *Compiler) Close() {
	if c.filter != nil {
		c.filter.Release()
		c.filter = nil
	}
}

// applyAttributes 应用过滤器级属性，每个属性只设置一次
func (c *Compiler) applyAttributes(p *policy.Policy) error {
	badArch, err := toScmpAction(p.BadArchAction)
	if err != nil {
		return fmt.Errorf("bad-arch action: %w", err)
	}
	if err := c.filter.SetBadArchAction(badArch); err != nil {
		return fmt.Errorf("set attribute ACT_BADARCH=%s: %w", p.BadArchAction, err)
	}
	if err := c.filter.SetNoNewPrivsBit(p.NoNewPrivs); err != nil {
		return fmt.Errorf("set attribute CTL_NNP=%v: %w", p.NoNewPrivs, err)
	}
	if err := c.filter.SetTsync(p.TSync); err != nil {
		return fmt.Errorf("set attribute CTL_TSYNC=%v: %w", p.TSync, err)
	}
	return nil
}

func (c *Compiler) addRules(rules []policy.Rule) error {
	for i, r := range rules {
		if err := c.addRule(r); err != nil {
			return fmt.Errorf("rule %d (%s %s): %w", i, r.Action, r.Name, err)
		}
	}
	return nil
}

func (c *Compiler) addRule(r policy.Rule) error {
	nr, err := scmp.GetSyscallFromName(r.Name)
	if err != nil {
		return err
	}
	act, err := toScmpAction(r.Action)
	if err != nil {
		return err
	}
	if len(r.Args) == 0 {
		return c.filter.AddRule(nr, act)
	}
	conds := make([]scmp.ScmpCondition, 0, len(r.Args))
	for _, a := range r.Args {
		cond, err := toScmpCondition(a)
		if err != nil {
			return err
		}
		conds = append(conds, cond)
	}
	return c.filter.AddRuleConditional(nr, act, conds)
}

// BPF 返回二进制指令产物
func (c *Compiler) BPF() ([]byte, error) {
	out, err := c.export(c.filter.ExportBPF)
	if err != nil {
		return nil, fmt.Errorf("export BPF: %w", err)
	}
	return out, nil
}

// PFC 返回同一上下文的可读文本产物
func (c *Compiler) PFC() ([]byte, error) {
	out, err := c.export(c.filter.ExportPFC)
	if err != nil {
		return nil, fmt.Errorf("export PFC: %w", err)
	}
	return out, nil
}

// export 通过管道把面向文件的导出接口捕获为字节
func (c *Compiler) export(fn func(*os.File) error) ([]byte, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(&buf, r)
		done <- err
	}()

	exportErr := fn(w)
	w.Close()
	copyErr := <-done
	if exportErr != nil {
		return nil, exportErr
	}
	if copyErr != nil {
		return nil, copyErr
	}
	return buf.Bytes(), nil
}

// toScmpAction 将策略动作转换为 libseccomp 的动作类型
func toScmpAction(a policy.Action) (scmp.ScmpAction, error) {
	switch a.Action() {
	case policy.ActionAllow:
		return scmp.ActAllow, nil
	case policy.ActionErrno:
		return scmp.ActErrno.SetReturnCode(int16(a.ReturnCode())), nil
	case policy.ActionKillProcess:
		return scmp.ActKillProcess, nil
	}
	return scmp.ActInvalid, fmt.Errorf("action %s cannot be expressed by libseccomp", a)
}

// toScmpCondition 将参数比较器转换为 libseccomp 的条件。
// 32 位比较器按原始生成器的语义把操作数截断到低 32 位。
func toScmpCondition(c policy.ArgCmp) (scmp.ScmpCondition, error) {
	var op scmp.ScmpCompareOp
	switch c.Op {
	case policy.CmpEQ:
		op = scmp.CompareEqual
	case policy.CmpNE:
		op = scmp.CompareNotEqual
	case policy.CmpMaskedEQ:
		op = scmp.CompareMaskedEqual
	default:
		return scmp.ScmpCondition{}, fmt.Errorf("comparison operator %s cannot be expressed by libseccomp", c.Op)
	}
	mask, value := c.Mask, c.Value
	if c.Width == policy.Width32 {
		mask &= 0xffffffff
		value &= 0xffffffff
	}
	if c.Op == policy.CmpMaskedEQ {
		return scmp.MakeCondition(c.Arg, op, mask, value)
	}
	return scmp.MakeCondition(c.Arg, op, value)
}
