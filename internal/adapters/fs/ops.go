// Package fs implements working-copy file operations on top of afero,
// so the same code runs against the real checkout and an in-memory
// filesystem in tests.
package fs

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

type Ops struct {
	fs afero.Fs
}

var _ ports.FileOps = (*Ops)(nil)

// NewOps returns file operations scoped to root. Paths handed to the
// returned Ops are relative to root and may not escape it.
func NewOps(base afero.Fs, root string) *Ops {
	return &Ops{fs: afero.NewBasePathFs(base, root)}
}

func NewOpsFromFs(scoped afero.Fs) *Ops {
	return &Ops{fs: scoped}
}

func (o *Ops) Create(ctx context.Context, filePath string, content []byte) (ports.OpResult, error) {
	relPath, err := cleanOpPath(filePath)
	if err != nil {
		return ports.OpResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.OpResult{}, err
	}

	if dir := path.Dir(relPath); dir != "." {
		if err := o.fs.MkdirAll(dir, 0o755); err != nil {
			return ports.OpResult{}, fmt.Errorf("create parent directories: %w", err)
		}
	}
	if err := afero.WriteFile(o.fs, relPath, content, 0o644); err != nil {
		return ports.OpResult{}, fmt.Errorf("write file: %w", err)
	}

	return ports.OpResult{
		Message: fmt.Sprintf("file created: %s", relPath),
		Data:    map[string]any{"path": relPath},
	}, nil
}

func (o *Ops) Read(ctx context.Context, filePath string) (ports.OpResult, error) {
	relPath, err := cleanOpPath(filePath)
	if err != nil {
		return ports.OpResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.OpResult{}, err
	}

	content, err := afero.ReadFile(o.fs, relPath)
	if err != nil {
		return ports.OpResult{}, fmt.Errorf("read file %s: %w", relPath, err)
	}

	return ports.OpResult{
		Message: fmt.Sprintf("file read: %s", relPath),
		Data: map[string]any{
			"path":        relPath,
			"content":     base64.StdEncoding.EncodeToString(content),
			"raw_content": string(content),
		},
	}, nil
}

// Modify rewrites an existing file. Unlike Create it refuses to touch a
// path that does not exist yet.
func (o *Ops) Modify(ctx context.Context, filePath string, content []byte, mode domain.ModifyMode) (ports.OpResult, error) {
	relPath, err := cleanOpPath(filePath)
	if err != nil {
		return ports.OpResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.OpResult{}, err
	}

	exists, err := afero.Exists(o.fs, relPath)
	if err != nil {
		return ports.OpResult{}, fmt.Errorf("stat file %s: %w", relPath, err)
	}
	if !exists {
		return ports.OpResult{}, fmt.Errorf("file %s does not exist", relPath)
	}

	next := content
	if mode == domain.ModifyAppend {
		existing, err := afero.ReadFile(o.fs, relPath)
		if err != nil {
			return ports.OpResult{}, fmt.Errorf("read file %s: %w", relPath, err)
		}
		next = append(existing, content...)
	}

	if err := afero.WriteFile(o.fs, relPath, next, 0o644); err != nil {
		return ports.OpResult{}, fmt.Errorf("write file: %w", err)
	}

	return ports.OpResult{
		Message: fmt.Sprintf("file modified: %s", relPath),
		Data:    map[string]any{"path": relPath, "mode": string(mode)},
	}, nil
}

func (o *Ops) Delete(ctx context.Context, filePath string) (ports.OpResult, error) {
	relPath, err := cleanOpPath(filePath)
	if err != nil {
		return ports.OpResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.OpResult{}, err
	}

	info, err := o.fs.Stat(relPath)
	if err != nil {
		return ports.OpResult{}, fmt.Errorf("stat file %s: %w", relPath, err)
	}

	if info.IsDir() {
		err = o.fs.RemoveAll(relPath)
	} else {
		err = o.fs.Remove(relPath)
	}
	if err != nil {
		return ports.OpResult{}, fmt.Errorf("delete %s: %w", relPath, err)
	}

	return ports.OpResult{
		Message: fmt.Sprintf("file deleted: %s", relPath),
		Data:    map[string]any{"path": relPath},
	}, nil
}

type searchMatch struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (o *Ops) Search(ctx context.Context, term string, mode domain.SearchMode) (ports.OpResult, error) {
	matches := make([]searchMatch, 0)
	loweredTerm := strings.ToLower(term)

	walkErr := afero.Walk(o.fs, ".", func(walkPath string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}

		matched, err := o.matches(walkPath, info.Name(), loweredTerm, mode)
		if err != nil {
			return err
		}
		if matched {
			matches = append(matches, searchMatch{
				Path: strings.TrimPrefix(walkPath, "/"),
				Name: info.Name(),
				Size: info.Size(),
			})
		}
		return nil
	})
	if walkErr != nil {
		return ports.OpResult{}, fmt.Errorf("search working copy: %w", walkErr)
	}

	return ports.OpResult{
		Message: fmt.Sprintf("found %d results", len(matches)),
		Data: map[string]any{
			"results":     matches,
			"count":       len(matches),
			"search_term": term,
			"search_type": string(mode),
		},
	}, nil
}

func (o *Ops) matches(walkPath, name, loweredTerm string, mode domain.SearchMode) (bool, error) {
	switch mode {
	case domain.SearchByName:
		return strings.Contains(strings.ToLower(name), loweredTerm), nil
	case domain.SearchByExtension:
		ext := strings.TrimPrefix(path.Ext(name), ".")
		return strings.EqualFold(ext, strings.TrimPrefix(loweredTerm, ".")), nil
	case domain.SearchByContent:
		content, err := afero.ReadFile(o.fs, walkPath)
		if err != nil {
			// Unreadable entries do not fail the whole search.
			return false, nil
		}
		return strings.Contains(strings.ToLower(string(content)), loweredTerm), nil
	default:
		return false, fmt.Errorf("unknown search mode %q", mode)
	}
}

func cleanOpPath(filePath string) (string, error) {
	trimmed := strings.TrimSpace(filePath)
	if trimmed == "" {
		return "", fmt.Errorf("path is required: %w", domain.ErrMissingParameter)
	}

	cleaned := path.Clean(strings.TrimPrefix(trimmed, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the working copy", filePath)
	}
	return cleaned, nil
}
