package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("running ministry: %w", ErrAgentTimeout)
	if !errors.Is(wrapped, ErrAgentTimeout) {
		t.Error("wrapped sentinel does not match")
	}
	if errors.Is(wrapped, ErrAgentExec) {
		t.Error("wrapped sentinel matched a different code")
	}

	same := NewEngineError(ErrAgentTimeout.Code, "custom message")
	if !errors.Is(same, ErrAgentTimeout) {
		t.Error("same-code error does not match sentinel")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{ErrAgentTimeout, KindAgentTimeout},
		{fmt.Errorf("wrapped: %w", ErrAgentParse), KindAgentParseError},
		{ErrTrackerTransient, KindTrackerTransient},
		{fmt.Errorf("x: %w", ErrRateLimited), KindRateLimited},
		{ErrEngineCrash, KindEngineCrash},
		{errors.New("plain error"), KindUnknown},
		{nil, KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.kind {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.kind)
		}
	}
}
