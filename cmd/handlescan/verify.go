package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/handlescan/handlescan/internal/catalog"
	"github.com/handlescan/handlescan/internal/config"
	"github.com/handlescan/handlescan/internal/engine"
	"github.com/handlescan/handlescan/internal/log"
	"github.com/handlescan/handlescan/internal/model"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify catalog detection rules against recorded accounts",
		Long: `Verify probes each catalog site twice: once with an account name the
catalog records as claimed, once with one it records as unclaimed. A site
passes when both probes classify as recorded. A failure usually means the
site changed its error page or status codes and the detection rule needs
updating.

Sites without recorded account names are skipped.

Examples:
  # Verify the whole catalog
  handlescan verify

  # Verify selected sites only
  handlescan verify --site GitHub --site GitLab

  # Verify through a local proxy with gentler pacing
  handlescan verify --proxy socks5://127.0.0.1:1080 --rate 2`,
		Args: cobra.NoArgs,
		RunE: runVerifyCmd,
	}

	addCatalogFlags(cmd)
	addProbeFlags(cmd)

	return cmd
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildVerifyConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateProbe(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runVerify(ctx, cfg, logger)
}

// buildVerifyConfig creates a Config from the verify command flags.
func buildVerifyConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := catalogConfigFromFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := probeConfigFromFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.SaveHistory = false

	if err := loadFileOptions(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// runVerify probes every checkable site with its recorded account names and
// reports the sites whose detection rule no longer classifies them correctly.
func runVerify(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	var checkable []*catalog.Descriptor
	for _, d := range cat.Sites() {
		if d.UsernameClaimed != "" && d.UsernameUnclaimed != "" {
			checkable = append(checkable, d)
		}
	}
	skipped := cat.Len() - len(checkable)
	if len(checkable) == 0 {
		return fmt.Errorf("none of the %d selected sites record verification account names", cat.Len())
	}

	fmt.Printf("Verifying %d of %d sites (%d without recorded usernames skipped)...\n\n",
		len(checkable), cat.Len(), skipped)

	eng, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Each site check is independent; the per-check single-site catalog
	// keeps the engine's own pool at one worker, so this limit is the
	// effective probe concurrency.
	limit := cfg.Workers
	if len(checkable) < limit {
		limit = len(checkable)
	}

	mismatches := make([][]string, len(checkable))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, d := range checkable {
		g.Go(func() error {
			found, err := verifySite(gctx, eng, d)
			if err != nil {
				return err
			}
			mismatches[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, d := range checkable {
		if len(mismatches[i]) == 0 {
			continue
		}
		failed++
		for _, m := range mismatches[i] {
			fmt.Printf("[!] %s: %s\n", d.Name, m)
		}
	}
	if failed > 0 {
		fmt.Println()
	}

	fmt.Printf("Passed: %d/%d\n", len(checkable)-failed, len(checkable))

	if failed > 0 {
		return fmt.Errorf("%d of %d sites failed verification", failed, len(checkable))
	}
	return nil
}

// verifySite probes one site with its recorded claimed and unclaimed account
// names and returns a description of each probe that classified differently
// than recorded. The error is non-nil only when probing itself was aborted.
func verifySite(ctx context.Context, eng *engine.Engine, d *catalog.Descriptor) ([]string, error) {
	single := catalog.New()
	if err := single.Add(d); err != nil {
		return nil, err
	}

	var mismatches []string

	checks := []struct {
		username string
		want     model.QueryStatus
	}{
		{d.UsernameClaimed, model.StatusClaimed},
		{d.UsernameUnclaimed, model.StatusAvailable},
	}
	for _, check := range checks {
		results, err := eng.Probe(ctx, check.username, single, model.NopSink{})
		if err != nil {
			return nil, err
		}
		got := results[d.Name]
		if got.Status == check.want {
			continue
		}
		detail := fmt.Sprintf("account %q classified %s, want %s",
			check.username, got, check.want)
		mismatches = append(mismatches, detail)
	}

	return mismatches, nil
}
