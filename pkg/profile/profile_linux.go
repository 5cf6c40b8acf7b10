// Package profile 定义一个最小托管运行时沙箱的系统调用白名单。
//
// 安全姿态是白名单式的：默认动作终止进程，显式规则只放行运行时启动、
// 内存管理、只读文件访问、线程创建、时间与身份查询、信号处理所需要的
// 很小一组调用和参数形态。参数空间无法完全约束的调用，要么省略，
// 要么用掩码比较器拒绝已知安全集合之外的任何位，要么返回错误码
// 让行为良好的调用方得到可恢复的失败而不是被终止。
package profile

import (
	"golang.org/x/sys/unix"

	"github.com/zqzqsb/seccompgen/pkg/policy"
)

// futex 操作码来自 linux/futex.h，x/sys/unix 没有导出
const (
	futexWake        = 0x1
	futexPrivateFlag = 0x80
)

// Minimal 构建最小运行时策略。
// 本表按 x86_64 整理，32 位时代的别名调用（stat64、fcntl64 等）
// 在该架构上不存在，由对应的 64 位形式覆盖。
func Minimal() *policy.Policy {
	p := &policy.Policy{
		// 任何未命中的系统调用直接终止进程
		DefaultAction: policy.ActionKillProcess,
		// 目标架构不识别时同样立即终止
		BadArchAction: policy.ActionKillProcess,
		NoNewPrivs:    true,
		TSync:         true,
	}

	// 允许干净退出
	p.Allow("exit")
	p.Allow("exit_group")

	// 允许 mmap 及相关调用，动态加载、读入 dump 文件和线程栈分配都需要。
	// 不允许同时可写可执行的页面。
	// MAP_DENYWRITE 已被内核忽略，但一些版本的动态加载器仍会传它。
	p.Allow("mmap",
		policy.MaskedEq32(2,
			uint64(^uint32(unix.PROT_NONE|unix.PROT_READ|unix.PROT_WRITE)), 0),
		policy.MaskedEq32(3,
			uint64(^uint32(unix.MAP_PRIVATE|unix.MAP_FILE|unix.MAP_ANONYMOUS|
				unix.MAP_FIXED|unix.MAP_DENYWRITE|unix.MAP_STACK|unix.MAP_NORESERVE)), 0))
	p.Allow("mmap",
		policy.MaskedEq32(2,
			uint64(^uint32(unix.PROT_NONE|unix.PROT_READ|unix.PROT_EXEC)), 0),
		policy.MaskedEq32(3,
			uint64(^uint32(unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED|
				unix.MAP_DENYWRITE)), 0))
	p.Allow("munmap")
	// 不允许把已有页面改成可执行
	p.Allow("mprotect",
		policy.MaskedEq32(2,
			uint64(^uint32(unix.PROT_NONE|unix.PROT_READ|unix.PROT_WRITE)), 0))

	// futex 到处都在用
	p.Allow("futex",
		policy.Eq32(1, futexWake|futexPrivateFlag))

	// 基本的动态内存管理
	p.Allow("brk")

	// 状态查询
	p.Allow("uname")
	p.Allow("getuid")
	p.Allow("geteuid")
	p.Allow("getpid")
	p.Allow("getpgrp")

	// 已打开文件描述符上的操作。描述符本身就是能力，
	// 在它上面的操作不会引入新的安全问题。
	p.Allow("read")
	p.Allow("write")
	p.Allow("close")
	p.Allow("lseek")
	p.Allow("dup")
	p.Allow("dup2")
	p.Allow("fstat")

	// 文件系统上的只读操作。需要进一步收紧时应配合挂载命名空间。
	p.Allow("access")
	p.Allow("faccessat")
	p.Allow("stat")
	p.Allow("lstat")
	p.Allow("newfstatat")
	p.Allow("readlink")
	p.Allow("readlinkat")
	p.Allow("getcwd")

	// 允许打开文件，但只能以只读方式
	p.Allow("open",
		policy.MaskedEq32(1,
			uint64(^uint32(unix.O_RDONLY|unix.O_CLOEXEC|unix.O_PATH|unix.O_DIRECTORY)), 0))
	p.Allow("openat",
		policy.MaskedEq32(2,
			uint64(^uint32(unix.O_RDONLY|unix.O_CLOEXEC|unix.O_PATH|unix.O_DIRECTORY)), 0))

	// 允许 tcgetpgrp：只放行标准输入上的这一个 ioctl 子操作
	p.Allow("ioctl",
		policy.Eq32(0, 0),
		policy.Eq32(1, unix.TIOCGPGRP))

	// 允许读取（但不允许设置）文件标志
	p.Allow("fcntl",
		policy.Eq32(1, unix.F_GETFL))

	// 从内核读取随机数
	p.Allow("getrandom")

	// 修改 umask 无关紧要
	p.Allow("umask")

	// 允许创建管道
	p.Allow("pipe")
	p.Allow("pipe2")

	// 允许读取（但不允许修改）资源限制
	p.Allow("getrlimit")
	p.Allow("prlimit64",
		policy.Eq32(0, 0), // pid == 0，即当前进程
		policy.Eq64(2, 0)) // new_limit == NULL
	// 拒绝修改资源限制，但不终止进程
	p.Errno(uint16(unix.EPERM), "prlimit64",
		policy.Eq32(0, 0), // pid == 0，即当前进程
		policy.Ne64(2, 0)) // new_limit != NULL

	// 安装信号处理器是无害的
	p.Allow("rt_sigaction")
	p.Allow("rt_sigprocmask")

	// 允许读取当前时间
	p.Allow("clock_gettime",
		policy.Eq32(0, unix.CLOCK_REALTIME))
	p.Allow("time")
	p.Allow("gettimeofday")

	// 定时器支持
	p.Allow("timer_create")
	p.Allow("timerfd_create")

	// 允许创建线程。掩码是 libc 创建线程所需的固定标志组合，
	// 见 clone 手册页的 NOTES 一节。
	p.Allow("clone",
		policy.MaskedEq64(0,
			^uint64(unix.CLONE_VM|unix.CLONE_FS|unix.CLONE_FILES|
				unix.CLONE_SYSVSEM|unix.CLONE_SIGHAND|unix.CLONE_THREAD|
				unix.CLONE_SETTLS|unix.CLONE_PARENT_SETTID|
				unix.CLONE_CHILD_CLEARTID), 0))
	p.Allow("sigaltstack")
	p.Allow("set_robust_list")

	// 允许给新线程设置名字
	p.Allow("prctl",
		policy.Eq32(0, unix.PR_SET_NAME))

	// glib 的事件处理会用到
	p.Allow("eventfd")
	p.Allow("eventfd2")
	p.Allow("wait4")
	p.Allow("poll")

	// 不允许创建套接字（放开网络访问过于危险），但返回错误码而不是终止
	p.Errno(uint16(unix.EACCES), "socket")

	return p
}
