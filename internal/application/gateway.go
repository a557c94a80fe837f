package application

import (
	"context"
	"fmt"
	"sort"

	"pkt.systems/pslog"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

// Gateway validates and sequentially dispatches one tenant's command
// batch against its bound collaborators. A bad step is reported and
// skipped; only failure to resolve an authenticated, bound session
// aborts the whole call.
type Gateway struct {
	registry *Registry
}

func NewGateway(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

func (g *Gateway) Execute(ctx context.Context, key domain.TenantKey, records []domain.CommandRecord) (domain.BatchReport, error) {
	lease, err := g.registry.AcquireBatch(ctx, key)
	if err != nil {
		return domain.BatchReport{}, err
	}
	defer lease.Release()

	ordered := make([]domain.CommandRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Step < ordered[j].Step })

	report := domain.BatchReport{
		TotalCommands: len(ordered),
		Results:       make([]domain.CommandResult, 0, len(ordered)),
		Repository:    lease.Repository,
	}

	log := pslog.Ctx(ctx).With("tenant", key.String())
	for _, record := range ordered {
		result := g.executeStep(ctx, lease, record)
		if result.Success {
			report.SuccessfulCommands++
		} else {
			report.FailedCommands++
			log.Warn("command step failed", "step", record.Step, "command", record.Command, "err", result.Error)
		}
		report.Results = append(report.Results, result)
	}
	report.ExecutedCommands = len(report.Results)

	log.Info("batch executed",
		"total", report.TotalCommands, "ok", report.SuccessfulCommands, "failed", report.FailedCommands)
	return report, nil
}

func (g *Gateway) executeStep(ctx context.Context, lease *BatchLease, record domain.CommandRecord) (result domain.CommandResult) {
	result = domain.CommandResult{Step: record.Step, Command: record.Command}

	// A collaborator panic fails this step only; later steps still run.
	defer func() {
		if rec := recover(); rec != nil {
			result = failed(result, fmt.Errorf("%w: panic: %v", domain.ErrCollaboratorError, rec))
		}
	}()

	// A batch cannot be preempted mid-step, but a cancelled caller
	// declines to start further steps; they are still reported.
	if err := ctx.Err(); err != nil {
		return failed(result, fmt.Errorf("%w: %s", domain.ErrCollaboratorError, err))
	}

	if err := domain.ValidateRecord(record); err != nil {
		return failed(result, err)
	}

	op, err := g.dispatch(ctx, lease, record)
	if err != nil {
		return failed(result, fmt.Errorf("%w: %s", domain.ErrCollaboratorError, err))
	}

	result.Success = true
	result.Message = op.Message
	result.Data = op.Data
	return result
}

// dispatch maps one validated record onto its collaborator operation,
// applying the content grammar. The switch covers the full command set;
// ValidateRecord has already rejected anything outside it.
func (g *Gateway) dispatch(ctx context.Context, lease *BatchLease, record domain.CommandRecord) (ports.OpResult, error) {
	switch record.Command {
	case domain.KindCreateFile:
		content, _ := domain.DecodeContent(record.Content)
		return lease.FileOps.Create(ctx, record.Path, []byte(content))

	case domain.KindReadFile:
		return lease.FileOps.Read(ctx, record.Path)

	case domain.KindModifyFile:
		path, markerAppend := domain.StripAppendMarker(record.Path)
		decoded, _ := domain.DecodeContent(record.Content)
		mode, content := domain.ParseModifyContent(decoded)
		if markerAppend {
			mode = domain.ModifyAppend
		}
		return lease.FileOps.Modify(ctx, path, []byte(content), mode)

	case domain.KindDeleteFile:
		return lease.FileOps.Delete(ctx, record.Path)

	case domain.KindSearchFile:
		decoded, _ := domain.DecodeContent(record.Content)
		mode, term := domain.ParseSearchTerm(decoded)
		return lease.FileOps.Search(ctx, term, mode)

	case domain.KindPull:
		return lease.GitOps.Pull(ctx)

	case domain.KindCommit:
		message, _ := domain.DecodeContent(record.Content)
		return lease.GitOps.Commit(ctx, message)

	case domain.KindPush:
		return lease.GitOps.Push(ctx)

	case domain.KindCreateBranch:
		return lease.GitOps.CreateBranch(ctx, domain.BranchName(record))

	case domain.KindSwitchBranch:
		return lease.GitOps.SwitchBranch(ctx, domain.BranchName(record))

	case domain.KindClone:
		// The working copy was cloned when the session was bound.
		return ports.OpResult{
			Message: "repository already cloned",
			Data:    map[string]any{"local_path": lease.WorkingCopy},
		}, nil

	default:
		return ports.OpResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, record.Command)
	}
}

func failed(result domain.CommandResult, err error) domain.CommandResult {
	result.Success = false
	result.Error = err.Error()
	result.Message = err.Error()
	return result
}
