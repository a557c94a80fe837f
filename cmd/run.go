package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/gh-commands-gateway/internal/adapters/render/report"
	"github.com/bnema/gh-commands-gateway/internal/domain"
)

func newRunCmd(app *app) *cobra.Command {
	var tenant tenantFlags
	var batchFile string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a command batch against the repository's working copy",
		Long:  "run restores the stored session for the given (user, repository) pair, reads a JSON array of command records from --file (or stdin), executes them in step order, and prints the batch report. The working copy is released when the batch finishes.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			key, err := tenant.key()
			if err != nil {
				return err
			}

			state, err := app.stateRepo.Get(ctx, key)
			if errors.Is(err, domain.ErrSessionNotFound) {
				return fmt.Errorf("no session for %s, run 'ghg auth login' first: %w", key.RepoFullName(), domain.ErrNotAuthenticated)
			}
			if err != nil {
				return err
			}

			token, err := app.secretStore.Get(ctx, state.CredentialRef)
			if err != nil {
				return fmt.Errorf("load credential: %w", err)
			}

			if err := app.registry.Restore(ctx, state, token); err != nil {
				return err
			}
			defer app.registry.Close(ctx)

			records, err := readBatch(cmd.InOrStdin(), batchFile)
			if err != nil {
				return err
			}

			batch, err := app.gateway.Execute(ctx, key, records)
			if err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(batch)
			}

			rendered, err := report.Render(batch)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)

			if batch.FailedCommands > 0 {
				return fmt.Errorf("%d of %d commands failed", batch.FailedCommands, batch.TotalCommands)
			}
			return nil
		},
	}

	tenant.register(cmd)
	cmd.Flags().StringVar(&batchFile, "file", "-", "Batch file with a JSON array of command records ('-' reads stdin)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw batch report as JSON")

	return cmd
}

func readBatch(stdin io.Reader, path string) ([]domain.CommandRecord, error) {
	var reader io.Reader = stdin
	if path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open batch file: %w", err)
		}
		defer func() { _ = file.Close() }()
		reader = file
	}

	var records []domain.CommandRecord
	if err := json.NewDecoder(reader).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode command batch: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("command batch is empty")
	}
	return records, nil
}
