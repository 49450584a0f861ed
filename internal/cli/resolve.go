package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/resolver"
	"github.com/ppiankov/kcal/internal/server"
)

var (
	resolveQty     float64
	resolveUnit    string
	resolveLang    string
	resolveJSON    bool
	resolveLocal   bool
	resolveTimeout time.Duration
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <food>",
	Short: "Resolve nutrition values for a food and portion",
	Long: `Resolve looks a food up across all tiers and prints the values for the
requested portion:
- Bundled reference table (instant)
- Local store of previously validated results
- Translation to English for other languages
- USDA FoodData Central, Open Food Facts, then an optional LLM estimate

Results below the verification threshold are flagged and should be checked.

Example:
  kcal resolve chicken --qty 150
  kcal resolve "pechuga de pollo" --qty 1 --unit cup --lang es
  kcal resolve "grandma's soup" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().Float64Var(&resolveQty, "qty", 100, "quantity in --unit")
	resolveCmd.Flags().StringVar(&resolveUnit, "unit", "g", "unit (g, kg, oz, lb, ml, l, cup, tbsp, tsp, piece...)")
	resolveCmd.Flags().StringVar(&resolveLang, "lang", "en", "language of the food name")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print JSON instead of text")
	resolveCmd.Flags().BoolVar(&resolveLocal, "local", false, "only use local tiers (no network)")
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 30*time.Second, "overall timeout")
}

func runResolve(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")

	_, r, _, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), resolveTimeout)
	defer cancel()

	q := resolver.Query{Name: name, Quantity: resolveQty, Unit: resolveUnit, Language: resolveLang}
	var res model.Resolution
	if resolveLocal {
		res = r.ResolveLocal(ctx, q)
	} else {
		res = r.Resolve(ctx, q)
	}

	if resolveJSON {
		return writeJSON(cmd.OutOrStdout(), server.NewResolutionResponse(name, res))
	}
	printResolution(cmd.OutOrStdout(), name, res)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeJSONLine(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func printResolution(w io.Writer, name string, res model.Resolution) {
	fmt.Fprintf(w, "%s (%g g)\n", name, res.Grams)

	switch res.Status {
	case model.StatusNotFound:
		fmt.Fprintf(w, "  ✗ not found - enter values manually\n")
		return
	case model.StatusUnavailable:
		fmt.Fprintf(w, "  ✗ providers unavailable - try again or enter values manually\n")
		return
	case model.StatusCancelled:
		fmt.Fprintf(w, "  ✗ cancelled\n")
		return
	}

	v := res.Values
	fmt.Fprintf(w, "  Calories:   %.0f kcal\n", v.Calories)
	fmt.Fprintf(w, "  Protein:    %.1f g\n", v.Protein)
	fmt.Fprintf(w, "  Carbs:      %.1f g\n", v.Carbs)
	fmt.Fprintf(w, "  Fat:        %.1f g\n", v.Fat)
	fmt.Fprintf(w, "  Fiber:      %.1f g\n", v.Fiber)
	fmt.Fprintf(w, "  Source:     %s (confidence %.2f)\n", res.Source, res.Confidence)
	if res.NeedsVerification {
		fmt.Fprintf(w, "  ⚠️  low confidence - please verify\n")
	}
}
