package fs

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

func newTestOps(t *testing.T) (*Ops, afero.Fs) {
	t.Helper()

	memFs := afero.NewMemMapFs()
	return NewOpsFromFs(memFs), memFs
}

func TestCreateWritesFileAndParents(t *testing.T) {
	t.Parallel()

	ops, memFs := newTestOps(t)

	result, err := ops.Create(context.Background(), "docs/guide/intro.md", []byte("# Intro\n"))
	require.NoError(t, err)

	assert.Equal(t, "file created: docs/guide/intro.md", result.Message)

	content, err := afero.ReadFile(memFs, "docs/guide/intro.md")
	require.NoError(t, err)
	assert.Equal(t, "# Intro\n", string(content))
}

func TestCreateOverwritesExistingFile(t *testing.T) {
	t.Parallel()

	ops, memFs := newTestOps(t)
	require.NoError(t, afero.WriteFile(memFs, "notes.txt", []byte("old"), 0o644))

	_, err := ops.Create(context.Background(), "notes.txt", []byte("new"))
	require.NoError(t, err)

	content, err := afero.ReadFile(memFs, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestCreateRejectsEscapingPath(t *testing.T) {
	t.Parallel()

	ops, _ := newTestOps(t)

	tests := []string{"", "  ", "..", "../outside.txt", "a/../../outside.txt"}
	for _, badPath := range tests {
		_, err := ops.Create(context.Background(), badPath, nil)
		assert.Error(t, err, "path %q", badPath)
	}
}

func TestReadReturnsEncodedAndRawContent(t *testing.T) {
	t.Parallel()

	ops, memFs := newTestOps(t)
	require.NoError(t, afero.WriteFile(memFs, "README.md", []byte("hello world\n"), 0o644))

	result, err := ops.Read(context.Background(), "README.md")
	require.NoError(t, err)

	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello world\n")), result.Data["content"])
	assert.Equal(t, "hello world\n", result.Data["raw_content"])
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	ops, _ := newTestOps(t)

	_, err := ops.Read(context.Background(), "missing.txt")
	require.Error(t, err)
}

func TestModify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    domain.ModifyMode
		initial string
		content string
		want    string
	}{
		{name: "replace", mode: domain.ModifyReplace, initial: "old body", content: "new body", want: "new body"},
		{name: "append", mode: domain.ModifyAppend, initial: "line one\n", content: "line two\n", want: "line one\nline two\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ops, memFs := newTestOps(t)
			require.NoError(t, afero.WriteFile(memFs, "file.txt", []byte(tc.initial), 0o644))

			result, err := ops.Modify(context.Background(), "file.txt", []byte(tc.content), tc.mode)
			require.NoError(t, err)
			assert.Equal(t, string(tc.mode), result.Data["mode"])

			content, err := afero.ReadFile(memFs, "file.txt")
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(content))
		})
	}
}

func TestModifyRequiresExistingFile(t *testing.T) {
	t.Parallel()

	ops, _ := newTestOps(t)

	_, err := ops.Modify(context.Background(), "missing.txt", []byte("body"), domain.ModifyReplace)
	require.ErrorContains(t, err, "does not exist")
}

func TestDeleteFileAndDirectory(t *testing.T) {
	t.Parallel()

	ops, memFs := newTestOps(t)
	require.NoError(t, afero.WriteFile(memFs, "single.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(memFs, "dir/nested/a.txt", []byte("x"), 0o644))

	_, err := ops.Delete(context.Background(), "single.txt")
	require.NoError(t, err)
	exists, err := afero.Exists(memFs, "single.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = ops.Delete(context.Background(), "dir")
	require.NoError(t, err)
	exists, err = afero.Exists(memFs, "dir/nested/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteMissingFile(t *testing.T) {
	t.Parallel()

	ops, _ := newTestOps(t)

	_, err := ops.Delete(context.Background(), "missing.txt")
	require.Error(t, err)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	ops, memFs := newTestOps(t)
	require.NoError(t, afero.WriteFile(memFs, "main.py", []byte("import os\n"), 0o644))
	require.NoError(t, afero.WriteFile(memFs, "util/helpers.py", []byte("def helper(): pass\n"), 0o644))
	require.NoError(t, afero.WriteFile(memFs, "README.md", []byte("Import OS instructions\n"), 0o644))
	require.NoError(t, afero.WriteFile(memFs, ".git/config", []byte("[core]\n"), 0o644))

	tests := []struct {
		name      string
		term      string
		mode      domain.SearchMode
		wantPaths []string
	}{
		{name: "by name substring", term: "main", mode: domain.SearchByName, wantPaths: []string{"main.py"}},
		{name: "by name case insensitive", term: "readme", mode: domain.SearchByName, wantPaths: []string{"README.md"}},
		{name: "by extension", term: "py", mode: domain.SearchByExtension, wantPaths: []string{"main.py", "util/helpers.py"}},
		{name: "by extension with dot", term: ".py", mode: domain.SearchByExtension, wantPaths: []string{"main.py", "util/helpers.py"}},
		{name: "by content case insensitive", term: "import os", mode: domain.SearchByContent, wantPaths: []string{"README.md", "main.py"}},
		{name: "no matches", term: "nomatch", mode: domain.SearchByName, wantPaths: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ops.Search(context.Background(), tc.term, tc.mode)
			require.NoError(t, err)

			matches, ok := result.Data["results"].([]searchMatch)
			require.True(t, ok)

			paths := make([]string, 0, len(matches))
			for _, match := range matches {
				paths = append(paths, match.Path)
			}
			assert.ElementsMatch(t, tc.wantPaths, paths)
			assert.Equal(t, len(tc.wantPaths), result.Data["count"])
		})
	}
}

func TestSearchSkipsGitDirectory(t *testing.T) {
	t.Parallel()

	ops, memFs := newTestOps(t)
	require.NoError(t, afero.WriteFile(memFs, ".git/hooks/config.sample", []byte("sample"), 0o644))
	require.NoError(t, afero.WriteFile(memFs, "config.toml", []byte("[app]\n"), 0o644))

	result, err := ops.Search(context.Background(), "config", domain.SearchByName)
	require.NoError(t, err)

	matches := result.Data["results"].([]searchMatch)
	require.Len(t, matches, 1)
	assert.Equal(t, "config.toml", matches[0].Path)
}
