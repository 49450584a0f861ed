package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/store"
)

var (
	storeLang string
	storeJSON bool
)

// storeCmd represents the store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and manage the local store of validated foods",
	Long: `The local store keeps validated per-100g values so repeated lookups skip
the network. Only confident results are stored automatically; use import to
add your own recipes and products.

Import and export use JSON Lines, one food per line:
  {"name": "grandma's soup", "language": "en", "values": {"calories": 60, "protein": 3, "carbs": 8, "fat": 2}}`,
}

var storeGetCmd = &cobra.Command{
	Use:   "get <food>",
	Short: "Show the stored entry for a food",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *model.Config, s store.Store) error {
			key := model.NewKey(strings.Join(args, " "), storeLang)
			e, err := s.Get(cmd.Context(), key)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no stored entry for %s", key)
			}
			if err != nil {
				return err
			}
			if storeJSON {
				return writeJSON(cmd.OutOrStdout(), e)
			}
			printEntries(cmd.OutOrStdout(), []model.Entry{*e}, cfg.Store.TTL)
			return nil
		})
	},
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <food>",
	Short: "Delete the stored entry for a food",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(_ *model.Config, s store.Store) error {
			key := model.NewKey(strings.Join(args, " "), storeLang)
			if err := s.Delete(cmd.Context(), key); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no stored entry for %s", key)
				}
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Deleted %s\n", key)
			return nil
		})
	},
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *model.Config, s store.Store) error {
			entries, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			if storeJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			printEntries(cmd.OutOrStdout(), entries, cfg.Store.TTL)
			fmt.Fprintf(os.Stderr, "\n%d entries\n", len(entries))
			return nil
		})
	},
}

var storeImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import foods from a JSON Lines file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *model.Config, s store.Store) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			// Imported provider data must meet the same bar as looked-up data
			gate := store.NewGate(s, cfg.Thresholds.Promotion)
			res, err := store.Import(cmd.Context(), gate, r, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(os.Stderr, "✗ %v\n", e)
			}
			fmt.Fprintf(os.Stderr, "✓ Imported %d entries (%d skipped)\n", res.Imported, res.Skipped)
			return nil
		})
	},
}

var storeExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export stored foods as JSON Lines (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(_ *model.Config, s store.Store) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			n, err := store.Export(cmd.Context(), s, w)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(os.Stderr, "✓ Exported %d entries\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeGetCmd, storeDeleteCmd, storeListCmd, storeImportCmd, storeExportCmd)

	storeCmd.PersistentFlags().StringVar(&storeLang, "lang", "en", "language of the food name")
	storeGetCmd.Flags().BoolVar(&storeJSON, "json", false, "print JSON instead of text")
	storeListCmd.Flags().BoolVar(&storeJSON, "json", false, "print JSON instead of text")
}

// withStore opens the configured store for the duration of fn
func withStore(fn func(cfg *model.Config, s store.Store) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close store: %w", closeErr)
		}
	}()
	return fn(cfg, s)
}

func printEntries(w io.Writer, entries []model.Entry, ttl time.Duration) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tKCAL\tPROTEIN\tCARBS\tFAT\tFIBER\tSOURCE\tCONF\tVALIDATED")
	now := time.Now()
	for _, e := range entries {
		validated := e.LastValidatedAt.Format("2006-01-02")
		if e.IsStale(now, ttl) {
			validated += " (stale)"
		}
		v := e.Values
		fmt.Fprintf(tw, "%s\t%.0f\t%.1f\t%.1f\t%.1f\t%.1f\t%s\t%.2f\t%s\n",
			e.Key, v.Calories, v.Protein, v.Carbs, v.Fat, v.Fiber, e.Source, e.Confidence, validated)
	}
	_ = tw.Flush()
}
