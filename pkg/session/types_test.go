package session

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"query", fmt.Errorf("avaudiosession: %w", ErrQueryFailed), KindQueryFailure},
		{"rejected", fmt.Errorf("set category: %w", ErrConfigurationRejected), KindConfigurationRejected},
		{"subscription", fmt.Errorf("observe: %w", ErrSubscription), KindSubscriptionFailure},
		{"unsupported", ErrUnsupported, KindUnsupported},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestSnapshot_Routes(t *testing.T) {
	var s Snapshot
	if s.OutputRoute() != RouteNone || s.InputRoute() != RouteNone {
		t.Errorf("empty snapshot routes = %q/%q, want none/none", s.OutputRoute(), s.InputRoute())
	}

	failed := Unavailable(nil, time.Now())
	if failed.OutputRoute() != RouteUnknown {
		t.Errorf("failed snapshot OutputRoute = %q, want unknown", failed.OutputRoute())
	}
	if failed.ErrKind != KindQueryFailure {
		t.Errorf("Unavailable(nil) kind = %q, want %q", failed.ErrKind, KindQueryFailure)
	}
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	orig := Snapshot{Routing: Routing{Outputs: []Port{{Type: RouteSpeaker}}}}
	c := orig.Clone()
	c.Routing.Outputs[0].Type = RouteHeadphones
	if orig.OutputRoute() != RouteSpeaker {
		t.Errorf("mutating the clone changed the original: %q", orig.OutputRoute())
	}
}

func TestSnapshot_WithError(t *testing.T) {
	s := Snapshot{Category: CategoryPlayback}
	if got := s.WithError(nil); got.HasError() {
		t.Error("WithError(nil) attached an error")
	}
	got := s.WithError(fmt.Errorf("speaker: %w", ErrConfigurationRejected))
	if got.ErrKind != KindConfigurationRejected || got.Category != CategoryPlayback {
		t.Errorf("WithError = %+v", got)
	}
}

func TestCategoryAndModeValidity(t *testing.T) {
	if !CategoryPlayAndRecord.IsValid() || CategoryUnknown.IsValid() || Category("loud").IsValid() {
		t.Error("Category.IsValid mismatch")
	}
	if !ModeVideoChat.IsValid() || ModeUnknown.IsValid() || Mode("").IsValid() {
		t.Error("Mode.IsValid mismatch")
	}
}
