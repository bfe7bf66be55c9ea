package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrDefinitionNotFound = errors.New("workflow definition not found")
	ErrDefinitionExists   = errors.New("active workflow definition already exists")
	ErrStateNotFound      = errors.New("workflow state not found")
	ErrInstanceNotFound   = errors.New("workflow instance not found")
	ErrRequestNotFound    = errors.New("request not found")
)

// TransitionError is returned when no transition leaves the current state
// on the requested action.
type TransitionError struct {
	Action  Action
	Current StateCode
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %q is not valid from state %q", e.Action, e.Current)
}

// ConflictError is returned when an instance changed between read and write.
type ConflictError struct {
	InstanceID string
	Version    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("workflow instance %s was modified concurrently (expected version %d)", e.InstanceID, e.Version)
}

// PermissionError is returned when permissions are enforced and the actor
// lacks the permission a transition requires.
type PermissionError struct {
	Action     Action
	Permission string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("action %q requires permission %q", e.Action, e.Permission)
}

// DriftError is returned when the active definition holds states or
// transitions the blueprint no longer declares. Such a definition can only
// be replaced by a new version.
type DriftError struct {
	Key         string
	Version     int
	States      []StateCode
	Transitions []string // "FROM:ACTION"
}

func (e *DriftError) Error() string {
	var parts []string
	if len(e.States) > 0 {
		codes := make([]string, len(e.States))
		for i, c := range e.States {
			codes[i] = string(c)
		}
		parts = append(parts, "states "+strings.Join(codes, ", "))
	}
	if len(e.Transitions) > 0 {
		parts = append(parts, "transitions "+strings.Join(e.Transitions, ", "))
	}
	return fmt.Sprintf("workflow definition %s v%d has %s missing from the blueprint; reprovision with a new version",
		e.Key, e.Version, strings.Join(parts, " and "))
}
