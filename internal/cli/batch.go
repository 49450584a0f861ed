package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/resolver"
	"github.com/ppiankov/kcal/internal/server"
	"github.com/ppiankov/kcal/internal/worker"
)

var (
	concurrency  int
	batchLang    string
	batchTimeout time.Duration
	batchJSON    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Resolve every food listed in a file in parallel",
	Long: `Batch resolves many foods concurrently:
- Read one food per line: name[,quantity[,unit[,language]]]
- Quantity defaults to 100 and unit to g
- Lines starting with # are comments; quote names containing commas
- Identical foods share a single network lookup

Example:
  kcal batch meal.csv
  kcal batch meal.csv --concurrency 8 --lang es
  kcal batch meal.csv --json > resolved.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&batchLang, "lang", "en", "language for lines that do not name one")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 5*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print one JSON object per line instead of text")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, r, _, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(func(ctx context.Context, item worker.Item) model.Resolution {
		return r.Resolve(ctx, resolver.Query{
			Name:     item.Name,
			Quantity: item.Quantity,
			Unit:     item.Unit,
			Language: item.Language,
		})
	}, workers)
	processor.OnProgress(func(res *worker.ItemResult) {
		mark := "✓"
		if res.Resolution.Status != model.StatusResolved {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s line %d: %s (%s)\n", mark, res.Item.Line, res.Item.Name, res.Resolution.Status)
	})

	results, err := processor.ProcessFile(ctx, file, batchLang)
	if err != nil {
		if !errors.Is(err, worker.ErrInvalidLine) {
			return fmt.Errorf("process file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "⚠️  skipped lines:\n%v\n", err)
	}

	out := cmd.OutOrStdout()
	resolved, verify := 0, 0
	for _, res := range results {
		if res.Resolution.Status == model.StatusResolved {
			resolved++
		}
		if res.Resolution.NeedsVerification {
			verify++
		}

		if batchJSON {
			if err := writeJSONLine(out, server.NewResolutionResponse(res.Item.Name, res.Resolution)); err != nil {
				return err
			}
			continue
		}
		printResolution(out, res.Item.Name, res.Resolution)
	}

	total := worker.Total(results)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:          %d foods\n", len(results))
	fmt.Fprintf(os.Stderr, "  Resolved:       %d\n", resolved)
	fmt.Fprintf(os.Stderr, "  Needs review:   %d\n", verify)
	fmt.Fprintf(os.Stderr, "  Sum:            %.0f kcal, %.1f g protein, %.1f g carbs, %.1f g fat, %.1f g fiber\n",
		total.Calories, total.Protein, total.Carbs, total.Fat, total.Fiber)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
