package domain_test

import (
	"testing"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

func TestTransitionError_Error(t *testing.T) {
	err := &domain.TransitionError{
		Action:  "FULFILL",
		Current: "SUBMITTED",
	}
	want := `action "FULFILL" is not valid from state "SUBMITTED"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConflictError_Error(t *testing.T) {
	err := &domain.ConflictError{InstanceID: "inst-1", Version: 3}
	want := "workflow instance inst-1 was modified concurrently (expected version 3)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPermissionError_Error(t *testing.T) {
	err := &domain.PermissionError{Action: "PRESIDENCY_APPROVE", Permission: "requests.approve.presidency"}
	want := `action "PRESIDENCY_APPROVE" requires permission "requests.approve.presidency"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestDriftError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *domain.DriftError
		want string
	}{
		{
			name: "states and transitions",
			err: &domain.DriftError{
				Key:         "REQUEST_STANDARD",
				Version:     2,
				States:      []domain.StateCode{"DRAFT"},
				Transitions: []string{"DRAFT:SUBMIT"},
			},
			want: "workflow definition REQUEST_STANDARD v2 has states DRAFT and transitions DRAFT:SUBMIT missing from the blueprint; reprovision with a new version",
		},
		{
			name: "transitions only",
			err:  &domain.DriftError{Key: "K", Version: 1, Transitions: []string{"A:GO", "B:GO"}},
			want: "workflow definition K v1 has transitions A:GO, B:GO missing from the blueprint; reprovision with a new version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
