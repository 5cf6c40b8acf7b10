package seccomp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/net/bpf"
)

// 过滤器返回值常量，来自 linux/seccomp.h。
// x/sys/unix 只导出 SECCOMP_MODE_*，返回值动作字需要自己定义。
const (
	RetKillProcess uint32 = 0x80000000 // 终止整个进程
	RetKillThread  uint32 = 0x00000000 // 终止当前线程
	RetTrap        uint32 = 0x00030000 // 发送 SIGSYS
	RetErrno       uint32 = 0x00050000 // 返回低 16 位中的 errno
	RetTrace       uint32 = 0x7ff00000 // 通知 tracer
	RetLog         uint32 = 0x7ffc0000 // 记录后放行
	RetAllow       uint32 = 0x7fff0000 // 放行

	retActionFull uint32 = 0xffff0000
	retDataMask   uint32 = 0x0000ffff
)

// Data 对应内核传给过滤器的 seccomp_data 结构：
//
//	struct seccomp_data {
//		int nr;
//		__u32 arch;
//		__u64 instruction_pointer;
//		__u64 args[6];
//	};
type Data struct {
	NR   int32
	Arch uint32
	IP   uint64
	Args [6]uint64
}

const dataSize = 64

func (d *Data) marshal() []byte {
	buf := make([]byte, dataSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(d.NR))
	binary.LittleEndian.PutUint32(buf[4:], d.Arch)
	binary.LittleEndian.PutUint64(buf[8:], d.IP)
	for i, a := range d.Args {
		binary.LittleEndian.PutUint64(buf[16+8*i:], a)
	}
	return buf
}

// ActionWord 提取返回值中的动作部分（去掉 errno 数据位）
func ActionWord(ret uint32) uint32 {
	return ret & retActionFull
}

// RetData 提取返回值中的附加数据（errno 动作的错误码）
func RetData(ret uint32) uint16 {
	return uint16(ret & retDataMask)
}

// Evaluate 在用户态对过滤器求值，返回内核语义下的完整动作字。
// 求值器只实现 libseccomp 生成器实际产出的指令形式，
// 遇到其它指令时报错而不是猜测其语义。
func (f Filter) Evaluate(d Data) (uint32, error) {
	insns, err := f.Disassemble()
	if err != nil {
		return 0, err
	}
	data := d.marshal()

	var a, x uint32
	for pc := 0; pc < len(insns); pc++ {
		switch in := insns[pc].(type) {
		case bpf.LoadAbsolute:
			if in.Size != 4 || int(in.Off)+4 > len(data) {
				return 0, fmt.Errorf("pc %d: load outside seccomp_data (off %d size %d)", pc, in.Off, in.Size)
			}
			a = binary.LittleEndian.Uint32(data[in.Off:])
		case bpf.LoadConstant:
			if in.Dst == bpf.RegX {
				x = in.Val
			} else {
				a = in.Val
			}
		case bpf.TAX:
			x = a
		case bpf.TXA:
			a = x
		case bpf.ALUOpConstant:
			a, err = alu(in.Op, a, in.Val)
			if err != nil {
				return 0, fmt.Errorf("pc %d: %w", pc, err)
			}
		case bpf.ALUOpX:
			a, err = alu(in.Op, a, x)
			if err != nil {
				return 0, fmt.Errorf("pc %d: %w", pc, err)
			}
		case bpf.NegateA:
			a = uint32(-int32(a))
		case bpf.Jump:
			pc += int(in.Skip)
		case bpf.JumpIf:
			pc += jumpOffset(in.Cond, a, in.Val, in.SkipTrue, in.SkipFalse)
		case bpf.JumpIfX:
			pc += jumpOffset(in.Cond, a, x, in.SkipTrue, in.SkipFalse)
		case bpf.RetConstant:
			return in.Val, nil
		case bpf.RetA:
			return a, nil
		default:
			return 0, fmt.Errorf("pc %d: unsupported instruction %T", pc, insns[pc])
		}
	}
	return 0, errors.New("filter fell off the end of the program")
}

func alu(op bpf.ALUOp, a, v uint32) (uint32, error) {
	switch op {
	case bpf.ALUOpAdd:
		return a + v, nil
	case bpf.ALUOpSub:
		return a - v, nil
	case bpf.ALUOpMul:
		return a * v, nil
	case bpf.ALUOpDiv:
		if v == 0 {
			return 0, errors.New("division by zero")
		}
		return a / v, nil
	case bpf.ALUOpMod:
		if v == 0 {
			return 0, errors.New("division by zero")
		}
		return a % v, nil
	case bpf.ALUOpAnd:
		return a & v, nil
	case bpf.ALUOpOr:
		return a | v, nil
	case bpf.ALUOpXor:
		return a ^ v, nil
	case bpf.ALUOpShiftLeft:
		return a << (v & 31), nil
	case bpf.ALUOpShiftRight:
		return a >> (v & 31), nil
	}
	return 0, fmt.Errorf("unsupported ALU op %v", op)
}

func jumpOffset(cond bpf.JumpTest, a, v uint32, skipTrue, skipFalse uint8) int {
	var taken bool
	switch cond {
	case bpf.JumpEqual:
		taken = a == v
	case bpf.JumpNotEqual:
		taken = a != v
	case bpf.JumpGreaterThan:
		taken = a > v
	case bpf.JumpLessThan:
		taken = a < v
	case bpf.JumpGreaterOrEqual:
		taken = a >= v
	case bpf.JumpLessOrEqual:
		taken = a <= v
	case bpf.JumpBitsSet:
		taken = a&v != 0
	case bpf.JumpBitsNotSet:
		taken = a&v == 0
	}
	if taken {
		return int(skipTrue)
	}
	return int(skipFalse)
}
