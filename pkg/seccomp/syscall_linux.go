package seccomp

import (
	"fmt"

	"github.com/elastic/go-seccomp-bpf/arch"
)

// arch.GetInfo("") 返回当前系统架构的系统调用映射表
var info, errInfo = arch.GetInfo("")

// 名称到调用号的反向索引
var nameToNum = func() map[string]int {
	if errInfo != nil {
		return nil
	}
	m := make(map[string]int, len(info.SyscallNumbers))
	for nr, name := range info.SyscallNumbers {
		m[name] = nr
	}
	return m
}()

// SyscallName 将系统调用号转换为当前架构下的名称
func SyscallName(nr int) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}
	n, ok := info.SyscallNumbers[nr]
	if !ok {
		return "", fmt.Errorf("syscall no %d does not exist", nr)
	}
	return n, nil
}

// SyscallNum 将系统调用名称转换为当前架构下的调用号
func SyscallNum(name string) (int, error) {
	if errInfo != nil {
		return 0, errInfo
	}
	nr, ok := nameToNum[name]
	if !ok {
		return 0, fmt.Errorf("syscall %q does not exist", name)
	}
	return nr, nil
}
