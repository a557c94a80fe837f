// Package report renders batch reports and authorization prompts for
// the standalone client's terminal output.
package report

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

func renderView(batch domain.BatchReport, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Batch report for %s", repoLabel(batch.Repository))),
		s.header.Render(fmt.Sprintf("commands: %d  ok: %d  failed: %d",
			batch.TotalCommands, batch.SuccessfulCommands, batch.FailedCommands)),
	}

	if len(batch.Results) == 0 {
		lines = append(lines, s.empty.Render("No commands executed."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, result := range batch.Results {
		lines = append(lines, renderResult(result, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderResult(result domain.CommandResult, s styles) string {
	marker := s.ok.Render("ok")
	if !result.Success {
		marker = s.fail.Render("fail")
	}

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.step.Render(fmt.Sprintf("step %d", result.Step)),
		" ",
		s.detail.Render(string(result.Command)),
		" ",
		marker,
	)

	message := result.Message
	if !result.Success && result.Error != "" {
		message = result.Error
	}
	if message != "" {
		line += " " + s.header.Render(message)
	}
	return line
}

func repoLabel(repo domain.RepositoryInfo) string {
	if repo.FullName != "" {
		return repo.FullName
	}
	return "repository"
}

// RenderAuthPrompt formats the user-facing device authorization
// instructions printed while the standalone client waits.
func RenderAuthPrompt(userCode, verificationURI string) string {
	s := newStyles()
	return lipgloss.JoinVertical(
		lipgloss.Left,
		s.title.Render("Authorize this device"),
		s.detail.Render(fmt.Sprintf("Open %s and enter code:", verificationURI)),
		s.code.Render(userCode),
	)
}
