package worker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ppiankov/kcal/internal/model"
	"github.com/ppiankov/kcal/internal/units"
)

// ErrInvalidLine marks batch lines that could not be parsed.
// Valid lines are still processed.
var ErrInvalidLine = errors.New("invalid batch line")

// Defaults for batch lines that omit quantity or unit
const (
	DefaultQuantity = 100
	DefaultUnit     = "g"
)

// Item is one line of a batch file: name[,quantity[,unit[,language]]]
type Item struct {
	Line     int
	Name     string
	Quantity float64
	Unit     string
	Language string
}

// ResolveFunc resolves one item. It must not fail; problems are reported in
// the resolution status.
type ResolveFunc func(ctx context.Context, item Item) model.Resolution

// ResolveJob resolves one batch item
type ResolveJob struct {
	Item    Item
	Resolve ResolveFunc
}

// Execute executes the resolve job
func (j *ResolveJob) Execute(ctx context.Context) Result {
	res := j.Resolve(ctx, j.Item)
	out := &ItemResult{Item: j.Item, Resolution: res}
	if res.Status == model.StatusCancelled {
		out.Error = context.Canceled
	}
	return out
}

// ItemResult is the resolution of one batch item
type ItemResult struct {
	Item       Item
	Resolution model.Resolution
	Error      error
}

// GetError returns the error from the item result
func (r *ItemResult) GetError() error {
	return r.Error
}

// BatchProcessor resolves many items concurrently
type BatchProcessor struct {
	resolve     ResolveFunc
	concurrency int
	progress    func(*ItemResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(resolve ResolveFunc, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		resolve:     resolve,
		concurrency: concurrency,
	}
}

// OnProgress registers a callback invoked as each item finishes
func (b *BatchProcessor) OnProgress(fn func(*ItemResult)) {
	b.progress = fn
}

// ProcessItems resolves items concurrently. Results keep the input order;
// items never started because ctx ended are reported as cancelled.
func (b *BatchProcessor) ProcessItems(ctx context.Context, items []Item) []*ItemResult {
	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &ResolveJob{Item: item, Resolve: b.resolve}
	}

	var onDone func(int, Result)
	if b.progress != nil {
		onDone = func(_ int, r Result) { b.progress(r.(*ItemResult)) }
	}

	results := NewPool(b.concurrency).Run(ctx, jobs, onDone)

	out := make([]*ItemResult, len(items))
	for i, r := range results {
		if r == nil {
			out[i] = &ItemResult{
				Item:       items[i],
				Resolution: model.Placeholder(model.StatusCancelled, units.ToGrams(items[i].Quantity, items[i].Unit)),
				Error:      context.Canceled,
			}
			continue
		}
		out[i] = r.(*ItemResult)
	}
	return out
}

// ProcessFile reads items from a file and resolves them concurrently.
// Unparseable lines are skipped and reported in an error wrapping
// ErrInvalidLine alongside the results.
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath, defaultLang string) ([]*ItemResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	items, err := ReadItems(file, defaultLang)
	if err != nil && !errors.Is(err, ErrInvalidLine) {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return b.ProcessItems(ctx, items), err
}

// ReadItems parses CSV lines of name[,quantity[,unit[,language]]].
// Blank lines and lines starting with # are skipped. Names containing commas
// must be quoted. Invalid lines are left out and reported together in an
// error wrapping ErrInvalidLine.
func ReadItems(r io.Reader, defaultLang string) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		items []Item
		errs  []error
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		item, err := parseRecord(record, defaultLang)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w: %w", line, ErrInvalidLine, err))
			continue
		}
		item.Line = line
		items = append(items, item)
	}
	return items, errors.Join(errs...)
}

func parseRecord(record []string, defaultLang string) (Item, error) {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	item := Item{
		Name:     field(0),
		Quantity: DefaultQuantity,
		Unit:     DefaultUnit,
		Language: defaultLang,
	}
	if item.Name == "" {
		return item, errors.New("empty food name")
	}
	if len(record) > 4 {
		return item, fmt.Errorf("too many fields (%d)", len(record))
	}

	if q := field(1); q != "" {
		qty, err := strconv.ParseFloat(q, 64)
		if err != nil || qty < 0 {
			return item, fmt.Errorf("invalid quantity %q", q)
		}
		item.Quantity = qty
	}
	if u := field(2); u != "" {
		item.Unit = u
	}
	if l := field(3); l != "" {
		item.Language = l
	}
	return item, nil
}

// Total sums the resolved values of results
func Total(results []*ItemResult) model.Values {
	var total model.Values
	for _, r := range results {
		if r.Resolution.Status != model.StatusResolved {
			continue
		}
		v := r.Resolution.Values
		total.Calories += v.Calories
		total.Protein += v.Protein
		total.Carbs += v.Carbs
		total.Fat += v.Fat
		total.Fiber += v.Fiber
	}
	return total
}
