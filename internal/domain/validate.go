package domain

import (
	"fmt"
	"strings"
)

// ValidateRecord checks one command record before dispatch: structural
// (non-negative step, known command kind), then per-kind required fields.
// It is pure; content-shape sub-modes are resolved at dispatch time by
// the same grammar in command.go.
func ValidateRecord(record CommandRecord) error {
	if record.Step < 0 {
		return fmt.Errorf("%w: step %d is negative", ErrMissingParameter, record.Step)
	}
	if !record.Command.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, record.Command)
	}

	switch record.Command {
	case KindCreateFile, KindReadFile, KindDeleteFile:
		if !hasValue(record.Path) {
			return fmt.Errorf("%w: %s requires path", ErrMissingParameter, record.Command)
		}
	case KindModifyFile:
		if !hasValue(record.Path) {
			return fmt.Errorf("%w: %s requires path", ErrMissingParameter, record.Command)
		}
		if !hasValue(record.Content) {
			return fmt.Errorf("%w: %s requires content", ErrMissingParameter, record.Command)
		}
	case KindSearchFile, KindCommit:
		if !hasValue(record.Content) {
			return fmt.Errorf("%w: %s requires content", ErrMissingParameter, record.Command)
		}
	case KindCreateBranch, KindSwitchBranch:
		if BranchName(record) == "" {
			return fmt.Errorf("%w: %s requires a branch name in path or content", ErrMissingParameter, record.Command)
		}
	case KindPull, KindPush, KindClone:
		// No parameters required.
	}

	return nil
}

func hasValue(s string) bool {
	return strings.TrimSpace(s) != ""
}
