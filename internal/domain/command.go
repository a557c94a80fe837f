package domain

import (
	"encoding/base64"
	"strings"
)

// CommandKind is the closed set of repository-mutation commands a batch
// may carry. Dispatch switches over this set exhaustively; anything else
// fails structural validation with ErrUnknownCommand.
type CommandKind string

const (
	KindCreateFile   CommandKind = "create.file"
	KindReadFile     CommandKind = "read.file"
	KindModifyFile   CommandKind = "modify.file"
	KindDeleteFile   CommandKind = "delete.file"
	KindSearchFile   CommandKind = "search.file"
	KindPull         CommandKind = "pull"
	KindCommit       CommandKind = "commit"
	KindPush         CommandKind = "push"
	KindCreateBranch CommandKind = "create.branch"
	KindSwitchBranch CommandKind = "switch.branch"
	KindClone        CommandKind = "clone"
)

func (k CommandKind) Valid() bool {
	switch k {
	case KindCreateFile, KindReadFile, KindModifyFile, KindDeleteFile,
		KindSearchFile, KindPull, KindCommit, KindPush,
		KindCreateBranch, KindSwitchBranch, KindClone:
		return true
	default:
		return false
	}
}

type SearchMode string

const (
	SearchByName      SearchMode = "name"
	SearchByExtension SearchMode = "extension"
	SearchByContent   SearchMode = "content"
)

type ModifyMode string

const (
	ModifyReplace ModifyMode = "replace"
	ModifyAppend  ModifyMode = "append"
)

// CommandRecord is one step of a batch. Content carries base64-encoded
// payload by convention; a payload that fails to decode is treated as a
// literal value.
type CommandRecord struct {
	Step    int         `json:"step"`
	Command CommandKind `json:"command"`
	Path    string      `json:"path,omitempty"`
	Content string      `json:"content,omitempty"`
}

// CommandResult reports one executed (or rejected) step. Error is set iff
// Success is false.
type CommandResult struct {
	Step    int            `json:"step"`
	Command CommandKind    `json:"command"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type BatchReport struct {
	TotalCommands      int             `json:"total_commands"`
	ExecutedCommands   int             `json:"executed_commands"`
	SuccessfulCommands int             `json:"successful_commands"`
	FailedCommands     int             `json:"failed_commands"`
	Results            []CommandResult `json:"results"`
	Repository         RepositoryInfo  `json:"repository_info"`
}

// DecodeContent decodes the record's base64 payload. Decode failure does
// not invalidate the record: the raw string is returned as a literal
// value, and ok is false.
func DecodeContent(content string) (value string, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return content, false
	}
	return string(raw), true
}

// ParseSearchTerm applies the search prefix grammar to a decoded content
// value. Absent or unknown prefixes select search-by-name.
func ParseSearchTerm(decoded string) (SearchMode, string) {
	switch {
	case strings.HasPrefix(decoded, "name:"):
		return SearchByName, strings.TrimSpace(strings.TrimPrefix(decoded, "name:"))
	case strings.HasPrefix(decoded, "ext:"):
		return SearchByExtension, strings.TrimSpace(strings.TrimPrefix(decoded, "ext:"))
	case strings.HasPrefix(decoded, "extension:"):
		return SearchByExtension, strings.TrimSpace(strings.TrimPrefix(decoded, "extension:"))
	case strings.HasPrefix(decoded, "content:"):
		return SearchByContent, strings.TrimSpace(strings.TrimPrefix(decoded, "content:"))
	default:
		return SearchByName, strings.TrimSpace(decoded)
	}
}

// ParseModifyContent applies the modify prefix grammar to a decoded
// content value. A bare value selects replace.
func ParseModifyContent(decoded string) (ModifyMode, string) {
	switch {
	case strings.HasPrefix(decoded, "append:"):
		return ModifyAppend, strings.TrimPrefix(decoded, "append:")
	case strings.HasPrefix(decoded, "replace:"):
		return ModifyReplace, strings.TrimPrefix(decoded, "replace:")
	default:
		return ModifyReplace, decoded
	}
}

const appendMarker = "(append)"

// StripAppendMarker removes the literal "(append)" marker from a path,
// reporting whether it was present. The marker is an alternate spelling
// of modify-append and takes precedence over any content prefix.
func StripAppendMarker(path string) (string, bool) {
	if !strings.Contains(path, appendMarker) {
		return path, false
	}
	return strings.TrimSpace(strings.ReplaceAll(path, appendMarker, "")), true
}

// BranchName resolves the branch argument for create.branch and
// switch.branch, which accept the name in either path or content.
func BranchName(record CommandRecord) string {
	if name := strings.TrimSpace(record.Path); name != "" {
		return name
	}
	decoded, _ := DecodeContent(record.Content)
	return strings.TrimSpace(decoded)
}
