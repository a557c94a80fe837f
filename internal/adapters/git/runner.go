// Package git drives the git CLI against a session's working copy.
// Every command targets an explicit directory via "git -C <dir>", so a
// runner never touches state outside the checkout it was built for.
package git

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

type runner struct {
	dir string
}

// run executes one git command and returns trimmed stdout. Stderr is
// captured and folded into the error on failure; token-bearing remote
// URLs never appear in the args we report.
func (r runner) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", append([]string{"-C", r.dir}, args...)...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w (stderr: %s)",
			redactArgs(args), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func redactArgs(args []string) string {
	redacted := make([]string, len(args))
	for i, arg := range args {
		redacted[i] = redactURL(arg)
	}
	return strings.Join(redacted, " ")
}

func redactURL(arg string) string {
	if !strings.Contains(arg, "@") || !strings.Contains(arg, "://") {
		return arg
	}
	parsed, err := url.Parse(arg)
	if err != nil || parsed.User == nil {
		return arg
	}
	parsed.User = url.User("REDACTED")
	return parsed.String()
}

// authenticatedURL embeds the session credential so non-interactive
// clone and push work without a credential helper.
func authenticatedURL(remoteBase string, repo domain.RepositoryInfo, credential domain.Credential) string {
	base := strings.TrimSuffix(remoteBase, "/")
	if credential.Empty() {
		return fmt.Sprintf("%s/%s/%s.git", base, repo.Owner, repo.Name)
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s/%s/%s.git", base, repo.Owner, repo.Name)
	}
	parsed.User = url.UserPassword("x-access-token", credential.Token)
	return fmt.Sprintf("%s/%s/%s.git", parsed.String(), repo.Owner, repo.Name)
}
