// Package seccomp 把导出的 Secure Computing 过滤器当作有类型的程序处理：
// 解析 sock_filter 指令流、反汇编，以及在用户态对 seccomp_data 输入求值。
package seccomp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// Filter 是 BPF 格式的 seccomp 过滤器。
// 每个 SockFilter 结构体表示一条 BPF 指令。
type Filter []unix.SockFilter

// SockFprog 将 Filter 转换为内核加载时使用的 SockFprog 格式。
// Filter 指针必须指向连续的内存区域，因此取切片底层数组的指针。
func (f Filter) SockFprog() *unix.SockFprog {
	b := []unix.SockFilter(f)
	return &unix.SockFprog{
		Len:    uint16(len(b)),
		Filter: &b[0],
	}
}

// FromRaw 由汇编得到的原始 BPF 指令构造过滤器
func FromRaw(raw []bpf.RawInstruction) Filter {
	f := make(Filter, 0, len(raw))
	for _, ins := range raw {
		f = append(f, unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		})
	}
	return f
}

// ParseFilter 从导出的二进制产物中解析指令流。
// 导出器按宿主字节序写出程序，这里也按宿主字节序读回。
func ParseFilter(r io.Reader) (Filter, error) {
	var f Filter
	for {
		var insn unix.SockFilter
		if err := binary.Read(r, binary.NativeEndian, &insn); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("filter truncated mid-instruction: %w", err)
			}
			return nil, fmt.Errorf("read filter instruction: %w", err)
		}
		f = append(f, insn)
	}
	if len(f) == 0 {
		return nil, errors.New("empty filter program")
	}
	return f, nil
}

// Disassemble 将过滤器还原为 x/net/bpf 的指令表示
func (f Filter) Disassemble() ([]bpf.Instruction, error) {
	raw := make([]bpf.RawInstruction, 0, len(f))
	for _, insn := range f {
		raw = append(raw, bpf.RawInstruction{
			Op: insn.Code,
			Jt: insn.Jt,
			Jf: insn.Jf,
			K:  insn.K,
		})
	}
	insns, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, errors.New("filter contains undecodable instructions")
	}
	return insns, nil
}
