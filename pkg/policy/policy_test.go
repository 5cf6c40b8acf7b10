package policy

import (
	"testing"
)

func TestActionReturnCode(t *testing.T) {
	a := ActionErrno.WithReturnCode(13)
	if a.Action() != ActionErrno {
		t.Errorf("Action() = %v, want ActionErrno", a.Action())
	}
	if a.ReturnCode() != 13 {
		t.Errorf("ReturnCode() = %d, want 13", a.ReturnCode())
	}
	if s := a.String(); s != "errno(13)" {
		t.Errorf("String() = %q, want %q", s, "errno(13)")
	}
	if ActionKillProcess.String() != "kill_process" {
		t.Errorf("String() = %q, want %q", ActionKillProcess.String(), "kill_process")
	}
}

func TestArgCmpMatches(t *testing.T) {
	args := [6]uint64{0, 129, 0x7, 0x22, 0, 0xffffffff00000003}

	tests := []struct {
		name string
		cmp  ArgCmp
		want bool
	}{
		{"eq hit", Eq32(1, 129), true},
		{"eq miss", Eq32(1, 128), false},
		{"ne hit", Ne64(2, 0), true},
		{"ne miss", Ne64(0, 0), false},
		{"masked hit", MaskedEq32(3, uint64(^uint32(0x22)), 0), true},
		{"masked miss", MaskedEq32(2, uint64(^uint32(0x3)), 0), false},
		{"masked 32-bit ignores high word", MaskedEq32(5, uint64(^uint32(0x3)), 0), true},
		{"masked 64-bit sees high word", MaskedEq64(5, ^uint64(0x3), 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmp.Matches(args); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleMatches(t *testing.T) {
	r := Rule{
		Action: ActionAllow,
		Name:   "prlimit64",
		Args:   []ArgCmp{Eq32(0, 0), Eq64(2, 0)},
	}

	if !r.Matches("prlimit64", [6]uint64{0, 0, 0}) {
		t.Error("conjunction satisfied but rule did not match")
	}
	if r.Matches("prlimit64", [6]uint64{0, 0, 1}) {
		t.Error("rule matched with one comparator false")
	}
	if r.Matches("getrlimit", [6]uint64{0, 0, 0}) {
		t.Error("rule matched a different syscall")
	}
}

func validPolicy() *Policy {
	return &Policy{
		DefaultAction: ActionKillProcess,
		BadArchAction: ActionKillProcess,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Policy
		wantErr bool
	}{
		{
			name:    "empty table",
			build:   validPolicy,
			wantErr: false,
		},
		{
			name: "unconditional allow",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("read")
				return p
			},
			wantErr: false,
		},
		{
			name: "invalid default action",
			build: func() *Policy {
				return &Policy{BadArchAction: ActionKillProcess}
			},
			wantErr: true,
		},
		{
			name: "argument index out of range",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("read", Eq32(6, 0))
				return p
			},
			wantErr: true,
		},
		{
			name: "expected value outside mask",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("mmap", MaskedEq32(2, 0x3, 0x4))
				return p
			},
			wantErr: true,
		},
		{
			name: "operand too wide for 32-bit comparator",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("mmap", Eq32(2, 1<<32))
				return p
			},
			wantErr: true,
		},
		{
			name: "contradictory eq/ne on one argument",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("prlimit64", Eq64(2, 0), Ne64(2, 0))
				return p
			},
			wantErr: true,
		},
		{
			name: "contradictory masks on identical bits",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("mmap", MaskedEq32(2, 0x3, 0), MaskedEq32(2, 0x3, 0x1))
				return p
			},
			wantErr: true,
		},
		{
			name: "masks agreeing on shared bits",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("mmap", MaskedEq32(2, 0x6, 0x2), MaskedEq32(2, 0x3, 0x2))
				return p
			},
			wantErr: false,
		},
		{
			name: "alternative rules with one action may overlap",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("read")
				p.Allow("read", Eq32(0, 0))
				return p
			},
			wantErr: false,
		},
		{
			name: "conflicting actions with disjoint predicates",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("prlimit64", Eq32(0, 0), Eq64(2, 0))
				p.Errno(1, "prlimit64", Eq32(0, 0), Ne64(2, 0))
				return p
			},
			wantErr: false,
		},
		{
			name: "conflicting actions with overlapping predicates",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("prlimit64", Eq32(0, 0))
				p.Errno(1, "prlimit64", Ne64(2, 0))
				return p
			},
			wantErr: true,
		},
		{
			name: "conflicting unconditional rules",
			build: func() *Policy {
				p := validPolicy()
				p.Allow("socket")
				p.Errno(13, "socket")
				return p
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompatibleIsSymmetric(t *testing.T) {
	cmps := []ArgCmp{
		Eq32(2, 0),
		Eq32(2, 1),
		Ne32(2, 0),
		MaskedEq32(2, 0x3, 0x1),
		MaskedEq32(2, 0x6, 0x2),
		MaskedEq32(2, 0xffffffff, 0x1),
	}
	for i, a := range cmps {
		for j, b := range cmps {
			if compatible(a, b) != compatible(b, a) {
				t.Errorf("compatible(%d, %d) is not symmetric", i, j)
			}
		}
	}
}
