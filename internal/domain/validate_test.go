package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  CommandRecord
		wantErr error
	}{
		{name: "create.file with path", record: CommandRecord{Step: 1, Command: KindCreateFile, Path: "a.txt"}},
		{name: "create.file missing path", record: CommandRecord{Step: 1, Command: KindCreateFile}, wantErr: ErrMissingParameter},
		{name: "read.file blank path", record: CommandRecord{Step: 1, Command: KindReadFile, Path: "   "}, wantErr: ErrMissingParameter},
		{name: "modify.file missing content", record: CommandRecord{Step: 1, Command: KindModifyFile, Path: "a.txt"}, wantErr: ErrMissingParameter},
		{name: "modify.file complete", record: CommandRecord{Step: 1, Command: KindModifyFile, Path: "a.txt", Content: b64("x")}},
		{name: "search.file missing content", record: CommandRecord{Step: 1, Command: KindSearchFile}, wantErr: ErrMissingParameter},
		{name: "commit missing message", record: CommandRecord{Step: 1, Command: KindCommit}, wantErr: ErrMissingParameter},
		{name: "create.branch name in content", record: CommandRecord{Step: 1, Command: KindCreateBranch, Content: b64("feature/x")}},
		{name: "switch.branch missing name", record: CommandRecord{Step: 1, Command: KindSwitchBranch}, wantErr: ErrMissingParameter},
		{name: "pull needs nothing", record: CommandRecord{Step: 1, Command: KindPull}},
		{name: "push needs nothing", record: CommandRecord{Step: 2, Command: KindPush}},
		{name: "clone needs nothing", record: CommandRecord{Step: 3, Command: KindClone}},
		{name: "unknown command", record: CommandRecord{Step: 1, Command: "drop.table"}, wantErr: ErrUnknownCommand},
		{name: "negative step", record: CommandRecord{Step: -1, Command: KindPull}, wantErr: ErrMissingParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
