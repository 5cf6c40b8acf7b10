package policy

import "fmt"

// Action 定义了策略对系统调用的处理动作
// 内部表示为 32 位无符号整数：
// - 低 16 位是基本动作（放行、返回错误码、终止进程）
// - 高 16 位是附加数据（errno 返回码）
type Action uint32

// Action 常量定义
const (
	ActionInvalid     Action = iota // 无效动作
	ActionAllow                     // 放行系统调用
	ActionErrno                     // 向调用方返回错误码，不终止进程
	ActionKillProcess               // 终止整个进程
)

// ReturnCode 获取动作携带的 errno 返回码
func (a Action) ReturnCode() uint16 {
	return uint16(a >> 16)
}

// WithReturnCode 设置动作携带的 errno 返回码
func (a Action) WithReturnCode(code uint16) Action {
	return a.Action() | Action(code)<<16
}

// Action 获取基本动作（不包含返回码）
func (a Action) Action() Action {
	return Action(a & 0xffff)
}

func (a Action) valid() bool {
	switch a.Action() {
	case ActionAllow, ActionErrno, ActionKillProcess:
		return true
	}
	return false
}

func (a Action) String() string {
	switch a.Action() {
	case ActionAllow:
		return "allow"
	case ActionErrno:
		return fmt.Sprintf("errno(%d)", a.ReturnCode())
	case ActionKillProcess:
		return "kill_process"
	}
	return "invalid"
}
