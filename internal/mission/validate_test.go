package mission

import "testing"

func TestValidateInput_MessageAtLimitPasses(t *testing.T) {
	msg := make([]byte, MaxTaskLength)
	if err := ValidateInput("agent-1", nil, 0, string(msg)); err != nil {
		t.Fatalf("expected message at exactly the limit to pass, got: %v", err)
	}
}

func TestValidateInput_MessageOverLimitFails(t *testing.T) {
	msg := make([]byte, MaxTaskLength+1)
	if err := ValidateInput("agent-1", nil, 0, string(msg)); err == nil {
		t.Fatal("expected message one byte over the limit to fail")
	}
}

func TestValidateInput_CircularRecursionRejected(t *testing.T) {
	lineage := []string{"root", "alpha", "agent-1"}
	err := ValidateInput("agent-1", lineage, 3, "hello")
	if err == nil {
		t.Fatal("expected circular recursion to be rejected")
	}
}

func TestValidateInput_DepthFourPasses(t *testing.T) {
	lineage := []string{"a", "b", "c", "d"}
	if err := ValidateInput("agent-1", lineage, 4, "hello"); err != nil {
		t.Fatalf("expected depth 4 to pass, got: %v", err)
	}
}

func TestValidateInput_DepthFiveFails(t *testing.T) {
	lineage := []string{"a", "b", "c", "d", "e"}
	if err := ValidateInput("agent-1", lineage, 5, "hello"); err == nil {
		t.Fatal("expected depth 5 to be rejected")
	}
}
