// Package platform 校验规则表中的位掩码所隐含依赖的固定平台假设。
// 任何一条假设不成立，生成出的过滤器都会悄悄错分系统调用参数，
// 因此必须在处理任何规则之前全部检查通过。
package platform

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Assumption 是对一个固定数值事实的布尔断言，声明一次、检查一次、不再改变
type Assumption struct {
	Name  string
	Holds func() bool
}

// Verify 依次评估每条假设，返回第一条不成立的假设
func Verify(assumptions []Assumption) error {
	for _, a := range assumptions {
		if !a.Holds() {
			return fmt.Errorf("platform assumption violated: %s", a.Name)
		}
	}
	return nil
}

// Assumptions 返回本策略依赖的全部平台假设
func Assumptions() []Assumption {
	return []Assumption{
		{"pointer width is 8 bytes", func() bool {
			return unsafe.Sizeof(uintptr(0)) == 8
		}},
		{"nil pointer is the zero bit pattern", func() bool {
			var p *int
			return uintptr(unsafe.Pointer(p)) == 0
		}},
		// 导出的指令流按宿主字节序写出
		{"native byte order is little-endian", isLittleEndian},
		{"target architecture is amd64", func() bool {
			return runtime.GOARCH == "amd64"
		}},
		// 值为 0 的标志位会从掩码中消失
		{"MAP_PRIVATE is a nonzero flag", nonzero(unix.MAP_PRIVATE)},
		{"MAP_SHARED is a nonzero flag", nonzero(unix.MAP_SHARED)},
		// 只读 open 掩码依赖写模式可以被掩掉
		{"O_WRONLY is a nonzero flag", nonzero(unix.O_WRONLY)},
		{"O_RDWR is a nonzero flag", nonzero(unix.O_RDWR)},
		{"O_CREAT is a nonzero flag", nonzero(unix.O_CREAT)},
		{"protection flags do not overlap", func() bool {
			return unix.PROT_READ&unix.PROT_WRITE == 0 &&
				unix.PROT_READ&unix.PROT_EXEC == 0 &&
				unix.PROT_WRITE&unix.PROT_EXEC == 0
		}},
		{"mmap flag union fits in 32 bits", fits32(unix.MAP_PRIVATE | unix.MAP_FILE |
			unix.MAP_ANONYMOUS | unix.MAP_FIXED | unix.MAP_DENYWRITE | unix.MAP_STACK |
			unix.MAP_NORESERVE)},
		{"open flag union fits in 32 bits", fits32(unix.O_RDONLY | unix.O_CLOEXEC |
			unix.O_PATH | unix.O_DIRECTORY)},
		{"thread clone flag union fits in 32 bits", fits32(unix.CLONE_VM | unix.CLONE_FS |
			unix.CLONE_FILES | unix.CLONE_SYSVSEM | unix.CLONE_SIGHAND | unix.CLONE_THREAD |
			unix.CLONE_SETTLS | unix.CLONE_PARENT_SETTID | unix.CLONE_CHILD_CLEARTID)},
	}
}

func nonzero(v uint64) func() bool {
	return func() bool { return v != 0 }
}

func fits32(v uint64) func() bool {
	return func() bool { return v <= math.MaxUint32 }
}

func isLittleEndian() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}
