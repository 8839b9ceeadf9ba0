package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
	"github.com/S-Axhwin/ransomwar-engine/internal/usecase"
)

// CanaryVerifier lists and verifies deployed decoys
type CanaryVerifier interface {
	Ledger() *domain.CanaryLedger
	VerifyCanary(path string) bool
}

// CanaryCLI renders operator tables for the verify, scan and deploy commands
type CanaryCLI struct {
	out       io.Writer
	inspector repository.ProcessInspector
}

// NewCanaryCLI creates a CLI handler writing to out. inspector may be nil.
func NewCanaryCLI(out io.Writer, inspector repository.ProcessInspector) *CanaryCLI {
	return &CanaryCLI{out: out, inspector: inspector}
}

// VerifyCanaries prints one row per ledger entry and returns how many are broken
func (c *CanaryCLI) VerifyCanaries(verifier CanaryVerifier) (int, error) {
	decoys := verifier.Ledger().Snapshot()
	sort.Slice(decoys, func(i, j int) bool { return decoys[i].Path < decoys[j].Path })

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTOKEN\tSIZE(KiB)\tCREATED\tSTATUS")
	fmt.Fprintln(w, "----\t-----\t---------\t-------\t------")

	broken := 0
	for _, decoy := range decoys {
		status := "INTACT"
		if !verifier.VerifyCanary(decoy.Path) {
			status = "TAMPERED"
			broken++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			decoy.Path, decoy.Token, decoy.SizeBytes/1024, decoy.CreatedAt.Format(time.RFC3339), status)
	}

	if err := w.Flush(); err != nil {
		return broken, err
	}

	fmt.Fprintf(c.out, "\n%d decoys, %d intact, %d tampered\n", len(decoys), len(decoys)-broken, broken)
	return broken, nil
}

// ShowDeployed prints the decoys written by a deploy run
func (c *CanaryCLI) ShowDeployed(decoys []domain.DecoyFile) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTOKEN\tSIZE(KiB)")
	fmt.Fprintln(w, "----\t-----\t---------")

	for _, decoy := range decoys {
		fmt.Fprintf(w, "%s\t%s\t%d\n", decoy.Path, decoy.Token, decoy.SizeBytes/1024)
	}
	return w.Flush()
}

// ShowScanResult prints flagged files from one entropy pass.
// When an inspector is configured the processes holding each file are listed too.
func (c *CanaryCLI) ShowScanResult(ctx context.Context, result *usecase.ScanResult) error {
	fmt.Fprintf(c.out, "Scanned %d files (%d sampled, %d unchanged, %d errors) in %s\n\n",
		result.FilesSeen, result.FilesSampled, result.CacheHits, result.Errors, result.Duration.Round(time.Millisecond))

	if len(result.Events) == 0 {
		fmt.Fprintln(c.out, "No suspicious files found")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tENTROPY\tREASON")
	fmt.Fprintln(w, "----\t-------\t------")
	for _, event := range result.Events {
		fmt.Fprintf(w, "%s\t%.3f\t%s\n", event.SubjectPath, event.Entropy, event.Detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if c.inspector == nil {
		return nil
	}
	for _, event := range result.Events {
		if err := c.ShowHolders(ctx, event.SubjectPath); err != nil {
			return err
		}
	}
	return nil
}

// ShowHolders lists the processes that have path open
func (c *CanaryCLI) ShowHolders(ctx context.Context, path string) error {
	if c.inspector == nil {
		return fmt.Errorf("no process inspector configured")
	}

	holders, err := c.inspector.FindHolders(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to find processes holding %s: %w", path, err)
	}
	if len(holders) == 0 {
		return nil
	}

	fmt.Fprintf(c.out, "\nProcesses holding %s:\n", path)
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tPATH\tSTARTED")
	fmt.Fprintln(w, "---\t----\t----\t-------")
	for _, p := range holders {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.PID, p.Name, p.Path, p.StartTime.Format(time.RFC3339))
	}
	return w.Flush()
}

// ShowActions prints containment action records
func (c *CanaryCLI) ShowActions(records []domain.ActionRecord) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tPID\tSAFE MODE\tOUTCOME")
	fmt.Fprintln(w, "----\t------\t---\t---------\t-------")

	for _, r := range records {
		pid := "-"
		if r.PID != 0 {
			pid = fmt.Sprintf("%d", r.PID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			r.Timestamp.Format("15:04:05"), r.Action, pid, r.SafeMode, r.Outcome)
	}
	return w.Flush()
}
