package platform

import (
	"runtime"
	"strings"
	"testing"
)

func TestAssumptionsHold(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skipf("assumption set targets amd64, running on %s", runtime.GOARCH)
	}
	for _, a := range Assumptions() {
		if !a.Holds() {
			t.Errorf("assumption %q does not hold on the build platform", a.Name)
		}
	}
}

func TestVerifyNamesFirstViolation(t *testing.T) {
	assumptions := []Assumption{
		{"first holds", func() bool { return true }},
		{"second fails", func() bool { return false }},
		{"third never evaluated", func() bool {
			t.Error("verification continued past a violated assumption")
			return true
		}},
	}

	err := Verify(assumptions)
	if err == nil {
		t.Fatal("Verify() = nil, want error")
	}
	if !strings.Contains(err.Error(), "second fails") {
		t.Errorf("Verify() error = %q, want it to name the violated assumption", err)
	}
}

func TestVerifyEmptyAndPassing(t *testing.T) {
	if err := Verify(nil); err != nil {
		t.Errorf("Verify(nil) = %v, want nil", err)
	}
	if err := Verify([]Assumption{{"holds", func() bool { return true }}}); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}
}
