// Package policy 定义 Secure Computing 过滤策略的数据模型：
// 过滤器级属性、参数比较器和有序规则表。
// 模型本身不依赖任何编译后端，编译发生在 pkg/seccomp/libseccomp。
package policy

import (
	"errors"
	"fmt"
	"math"
)

// CmpOp 是参数比较器的比较操作符
type CmpOp uint8

// CmpOp 常量定义
const (
	CmpInvalid  CmpOp = iota // 无效操作符
	CmpEQ                    // 完全相等
	CmpNE                    // 不相等
	CmpMaskedEQ              // 仅比较掩码覆盖的位
)

func (op CmpOp) String() string {
	switch op {
	case CmpEQ:
		return "=="
	case CmpNE:
		return "!="
	case CmpMaskedEQ:
		return "&=="
	}
	return "?"
}

// Width 声明比较发生的寄存器宽度
// 32 位比较器在编译时把掩码和期望值截断到低 32 位，
// 参数寄存器的高 32 位不参与掩码比较
type Width uint8

// Width 常量定义
const (
	Width32 Width = 32
	Width64 Width = 64
)

// ArgCmp 是对单个系统调用参数寄存器的一次布尔测试
type ArgCmp struct {
	Arg   uint   // 参数下标（0 到 5）
	Op    CmpOp  // 比较操作符
	Mask  uint64 // 掩码（仅 CmpMaskedEQ 使用）
	Value uint64 // 期望值
	Width Width  // 比较宽度
}

// Eq32 构造 32 位完全相等比较器
func Eq32(arg uint, value uint64) ArgCmp {
	return ArgCmp{Arg: arg, Op: CmpEQ, Value: value, Width: Width32}
}

// Eq64 构造 64 位完全相等比较器
func Eq64(arg uint, value uint64) ArgCmp {
	return ArgCmp{Arg: arg, Op: CmpEQ, Value: value, Width: Width64}
}

// Ne32 构造 32 位不相等比较器
func Ne32(arg uint, value uint64) ArgCmp {
	return ArgCmp{Arg: arg, Op: CmpNE, Value: value, Width: Width32}
}

// Ne64 构造 64 位不相等比较器
func Ne64(arg uint, value uint64) ArgCmp {
	return ArgCmp{Arg: arg, Op: CmpNE, Value: value, Width: Width64}
}

// MaskedEq32 构造 32 位掩码相等比较器：仅当参数与 mask 相与等于 value 时成立
func MaskedEq32(arg uint, mask, value uint64) ArgCmp {
	return ArgCmp{Arg: arg, Op: CmpMaskedEQ, Mask: mask, Value: value, Width: Width32}
}

// MaskedEq64 构造 64 位掩码相等比较器
func MaskedEq64(arg uint, mask, value uint64) ArgCmp {
	return ArgCmp{Arg: arg, Op: CmpMaskedEQ, Mask: mask, Value: value, Width: Width64}
}

// operands 返回按宽度截断后的掩码和期望值
func (c ArgCmp) operands() (mask, value uint64) {
	mask, value = c.Mask, c.Value
	if c.Width == Width32 {
		mask &= math.MaxUint32
		value &= math.MaxUint32
	}
	return mask, value
}

// Matches 判断一次调用的参数向量是否满足该比较器
func (c ArgCmp) Matches(args [6]uint64) bool {
	if c.Arg > 5 {
		return false
	}
	v := args[c.Arg]
	mask, value := c.operands()
	switch c.Op {
	case CmpEQ:
		return v == value
	case CmpNE:
		return v != value
	case CmpMaskedEQ:
		return v&mask == value
	}
	return false
}

func (c ArgCmp) check() error {
	if c.Arg > 5 {
		return fmt.Errorf("argument index %d out of range", c.Arg)
	}
	switch c.Op {
	case CmpEQ, CmpNE, CmpMaskedEQ:
	default:
		return fmt.Errorf("unknown comparison operator %d", c.Op)
	}
	switch c.Width {
	case Width32:
		if c.Mask > math.MaxUint32 || c.Value > math.MaxUint32 {
			return fmt.Errorf("operand does not fit in a 32-bit comparator")
		}
	case Width64:
	default:
		return fmt.Errorf("unknown comparator width %d", c.Width)
	}
	// 期望值落在掩码之外的比较器永远不成立
	if c.Op == CmpMaskedEQ && c.Value&^c.Mask != 0 {
		return fmt.Errorf("expected value %#x has bits outside mask %#x", c.Value, c.Mask)
	}
	return nil
}

func allOnes(w Width) uint64 {
	if w == Width32 {
		return math.MaxUint32
	}
	return math.MaxUint64
}

// compatible 判断同一参数上的两个比较器是否可以同时成立。
// 无法判定的组合按可同时成立处理。
func compatible(a, b ArgCmp) bool {
	if a.Arg != b.Arg || a.Width != b.Width {
		return true
	}
	am, av := a.operands()
	bm, bv := b.operands()
	switch {
	case a.Op == CmpEQ && b.Op == CmpEQ:
		return av == bv
	case a.Op == CmpEQ && b.Op == CmpNE:
		return av != bv
	case a.Op == CmpNE && b.Op == CmpEQ:
		return av != bv
	case a.Op == CmpNE && b.Op == CmpNE:
		return true
	case a.Op == CmpEQ && b.Op == CmpMaskedEQ:
		return av&bm == bv
	case a.Op == CmpMaskedEQ && b.Op == CmpEQ:
		return bv&am == av
	case a.Op == CmpNE && b.Op == CmpMaskedEQ:
		// 掩码不覆盖全部位时，掩码外总有自由位可以避开 av
		if bm == allOnes(b.Width) {
			return bv != av
		}
		return true
	case a.Op == CmpMaskedEQ && b.Op == CmpNE:
		if am == allOnes(a.Width) {
			return av != bv
		}
		return true
	case a.Op == CmpMaskedEQ && b.Op == CmpMaskedEQ:
		// 在公共掩码位上期望值必须一致
		common := am & bm
		return av&common == bv&common
	}
	return true
}

// Rule 把一个动作绑定到一个系统调用和一组参数比较器上。
// 规则命中当且仅当系统调用名匹配且所有比较器同时成立；
// 空比较器组对该系统调用无条件命中。
type Rule struct {
	Action Action
	Name   string // 系统调用名
	Args   []ArgCmp
}

// Matches 判断一次 (系统调用, 参数向量) 调用是否命中该规则
func (r Rule) Matches(name string, args [6]uint64) bool {
	if name != r.Name {
		return false
	}
	for _, c := range r.Args {
		if !c.Matches(args) {
			return false
		}
	}
	return true
}

// Policy 是构建中的完整策略：过滤器级属性加有序规则表。
// 同一系统调用上的多条规则是彼此独立的备选项（逻辑或）。
type Policy struct {
	DefaultAction Action // 无规则命中时的默认动作
	BadArchAction Action // 目标架构不识别时的动作
	NoNewPrivs    bool   // 加载时设置 no_new_privs
	TSync         bool   // 把策略同步到整个线程组
	Rules         []Rule
}

// Allow 追加一条放行规则
func (p *Policy) Allow(name string, args ...ArgCmp) {
	p.Rules = append(p.Rules, Rule{Action: ActionAllow, Name: name, Args: args})
}

// Errno 追加一条以错误码拒绝的规则：调用方得到 errno 而不是被终止
func (p *Policy) Errno(code uint16, name string, args ...ArgCmp) {
	p.Rules = append(p.Rules, Rule{Action: ActionErrno.WithReturnCode(code), Name: name, Args: args})
}

// Validate 对规则表做静态检查：
// 每条规则的比较器组必须可同时满足；
// 同一系统调用上动作不同的规则必须能证明互斥。
// 动作冲突的重叠是构建错误，而不是留给匹配器按顺序消解的歧义。
func (p *Policy) Validate() error {
	if !p.DefaultAction.valid() {
		return errors.New("invalid default action")
	}
	if !p.BadArchAction.valid() {
		return errors.New("invalid bad-arch action")
	}
	for i, r := range p.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule %d: empty syscall name", i)
		}
		if !r.Action.valid() {
			return fmt.Errorf("rule %d (%s): invalid action", i, r.Name)
		}
		for _, c := range r.Args {
			if err := c.check(); err != nil {
				return fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
			}
		}
		for j := range r.Args {
			for k := j + 1; k < len(r.Args); k++ {
				if !compatible(r.Args[j], r.Args[k]) {
					return fmt.Errorf("rule %d (%s): contradictory comparators on argument %d",
						i, r.Name, r.Args[j].Arg)
				}
			}
		}
	}
	for i := range p.Rules {
		for j := i + 1; j < len(p.Rules); j++ {
			a, b := &p.Rules[i], &p.Rules[j]
			if a.Name != b.Name || a.Action == b.Action {
				continue
			}
			if !provablyDisjoint(a, b) {
				return fmt.Errorf("rules %d and %d overlap on %s with conflicting actions (%s vs %s)",
					i, j, a.Name, a.Action, b.Action)
			}
		}
	}
	return nil
}

// provablyDisjoint 寻找一个参数位置，使两条规则的比较器不可能同时成立
func provablyDisjoint(a, b *Rule) bool {
	for _, ca := range a.Args {
		for _, cb := range b.Args {
			if ca.Arg == cb.Arg && !compatible(ca, cb) {
				return true
			}
		}
	}
	return false
}
