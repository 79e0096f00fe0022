package textextract

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	StrategyPlain    = "plain"
	StrategyLayout   = "layout"
	StrategyRepaired = "repaired"

	pageSeparator = "\n\n"

	// Horizontal gap, relative to font size, above which two fragments on the
	// same row are treated as separate words.
	wordGapRatio = 0.15
)

// Config tunes the default chain.
type Config struct {
	// MinPrimaryChars is the trimmed length the plain strategy must exceed.
	MinPrimaryChars int
}

// NewDefaultEngine builds the plain -> layout -> repaired chain.
func NewDefaultEngine(cfg Config) *Engine {
	minChars := cfg.MinPrimaryChars
	if minChars <= 0 {
		minChars = DefaultMinPrimaryChars
	}

	return NewEngine(
		Strategy{Name: StrategyPlain, Extract: PlainText, Accept: MinTrimmedLength(minChars)},
		Strategy{Name: StrategyLayout, Extract: LayoutText, Accept: NonEmpty},
		Strategy{Name: StrategyRepaired, Extract: RepairedText, Accept: NonEmpty},
	)
}

func openReader(raw []byte) (*pdf.Reader, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if r.NumPage() == 0 {
		return nil, ErrNoPages
	}
	return r, nil
}

func pageFonts(p pdf.Page) map[string]*pdf.Font {
	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		f := p.Font(name)
		fonts[name] = &f
	}
	return fonts
}

// PlainText reads the text objects of each page in content-stream order.
// Every non-empty page is followed by a blank line.
func PlainText(ctx context.Context, raw []byte) (string, error) {
	r, err := openReader(raw)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(pageFonts(page))
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString(pageSeparator)
	}

	return sb.String(), nil
}

// LayoutText rebuilds lines from positioned text fragments. Fragments are
// grouped by row, ordered left to right and separated by a space when the
// horizontal gap between them is wide enough to be a word break.
func LayoutText(ctx context.Context, raw []byte) (string, error) {
	r, err := openReader(raw)
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}

		var lines []string
		for _, row := range rows {
			if line := joinRow(row.Content); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, strings.Join(lines, "\n"))
		}
	}

	return strings.Join(pages, pageSeparator), nil
}

func joinRow(fragments pdf.TextHorizontal) string {
	if len(fragments) == 0 {
		return ""
	}

	sorted := make([]pdf.Text, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var sb strings.Builder
	prevEnd := sorted[0].X
	endsWithSpace := false
	for i, f := range sorted {
		if i > 0 {
			gap := f.X - prevEnd
			if gap > f.FontSize*wordGapRatio && !endsWithSpace && !strings.HasPrefix(f.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(f.S)
		if f.S != "" {
			endsWithSpace = strings.HasSuffix(f.S, " ")
		}
		prevEnd = f.X + f.W
	}

	return strings.TrimSpace(sb.String())
}

// RepairedText rewrites the document with pdfcpu before reading it again.
// Owner-password encryption is removed when present, otherwise the file is
// re-serialized, which rebuilds broken cross-reference tables.
func RepairedText(ctx context.Context, raw []byte) (string, error) {
	repaired, err := Repair(raw)
	if err != nil {
		return "", err
	}
	return PlainText(ctx, repaired)
}

// Repair returns a rewritten copy of the document.
func Repair(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(raw), &out, relaxedConfig()); err == nil {
		return out.Bytes(), nil
	}

	out.Reset()
	if err := api.Optimize(bytes.NewReader(raw), &out, relaxedConfig()); err != nil {
		return nil, fmt.Errorf("repair document: %w", err)
	}
	return out.Bytes(), nil
}

// PageCount reports the number of pages using pdfcpu's relaxed validation.
func PageCount(raw []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(raw), relaxedConfig())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return n, nil
}

var configDirOnce sync.Once

// relaxedConfig returns a pdfcpu configuration that tolerates the format
// violations common in generated invoices. pdfcpu's on-disk config directory
// is never used.
func relaxedConfig() *model.Configuration {
	configDirOnce.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
