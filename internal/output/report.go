package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/panbanda/classmeter/pkg/analyzer/opcount"
)

// numbers groups digits in table cells ("12,345").
var numbers = message.NewPrinter(language.English)

var countHeaders = []string{"Variable Access", "Conditional Branches", "Loop Markers"}

// countAlign left-aligns lead text columns and right-aligns the counts.
func countAlign(lead, counts int) []tw.Align {
	align := make([]tw.Align, lead+counts)
	for i := range align {
		align[i] = tw.AlignLeft
		if i >= lead {
			align[i] = tw.AlignRight
		}
	}
	return align
}

func countCells(c opcount.Counts) []string {
	return []string{
		numbers.Sprintf("%d", c.VariableAccesses),
		numbers.Sprintf("%d", c.ConditionalBranches),
		numbers.Sprintf("%d", c.LoopMarkers),
	}
}

func distCells(label string, pick func(opcount.Distribution) float64, s opcount.Summary) []string {
	return []string{
		label,
		numbers.Sprintf("%.1f", pick(s.VariableAccesses)),
		numbers.Sprintf("%.1f", pick(s.ConditionalBranches)),
		numbers.Sprintf("%.1f", pick(s.LoopMarkers)),
	}
}

// AnalysisReport renders a multi-file analysis. With perMethod set, the
// table lists one row per method instead of one per file. JSON and TOON
// output serialise the Analysis itself.
func AnalysisReport(a *opcount.Analysis, perMethod bool) *Report {
	r := &Report{Title: "Bytecode Instruction Counts", Data: a}
	if perMethod {
		r.Sections = append(r.Sections, methodTable(a))
	} else {
		r.Sections = append(r.Sections, fileTable(a))
	}
	r.Sections = append(r.Sections, summarySection(a.Summary))

	if w := warningSection(a); w != nil {
		r.Sections = append(r.Sections, w)
	}
	if e := errorSection(a); e != nil {
		r.Sections = append(r.Sections, e)
	}
	return r
}

func fileTable(a *opcount.Analysis) *Table {
	headers := append([]string{"File", "Class", "Methods"}, countHeaders...)
	rows := make([][]string, 0, len(a.Files))
	for _, f := range a.Files {
		row := []string{f.Path, f.ClassName, strconv.Itoa(len(f.Methods))}
		rows = append(rows, append(row, countCells(f.Counts)...))
	}

	s := a.Summary
	footer := append([]string{"Total", strconv.Itoa(s.TotalFiles) + " files", strconv.Itoa(s.TotalMethods)}, countCells(s.Counts)...)

	t := NewTable("Files", headers, rows, footer, a)
	t.Align = countAlign(2, 4)
	return t
}

func methodTable(a *opcount.Analysis) *Table {
	headers := append([]string{"Class", "Method", "Instructions"}, countHeaders...)
	var rows [][]string
	for _, f := range a.Files {
		for _, m := range f.Methods {
			instr := strconv.Itoa(m.Instructions)
			if m.Skipped {
				instr = "skipped"
			}
			row := []string{f.ClassName, m.Signature(), instr}
			rows = append(rows, append(row, countCells(m.Counts)...))
		}
	}

	s := a.Summary
	footer := append([]string{"Total", strconv.Itoa(s.TotalMethods) + " methods", ""}, countCells(s.Counts)...)

	t := NewTable("Methods", headers, rows, footer, a)
	t.Align = countAlign(2, 4)
	return t
}

// summaryTable shows the per-file distribution of each count.
type summaryTable struct {
	summary opcount.Summary
}

func summarySection(s opcount.Summary) Renderable {
	return &summaryTable{summary: s}
}

func (st *summaryTable) table() *Table {
	s := st.summary
	rows := [][]string{
		distCells("Mean per file", func(d opcount.Distribution) float64 { return d.Mean }, s),
		distCells("P90 per file", func(d opcount.Distribution) float64 { return d.P90 }, s),
		distCells("Max per file", func(d opcount.Distribution) float64 { return float64(d.Max) }, s),
	}
	t := NewTable("Distribution", append([]string{"Statistic"}, countHeaders...), rows, nil, s)
	t.Align = countAlign(1, 3)
	return t
}

func (st *summaryTable) lines() []string {
	s := st.summary
	return []string{
		fmt.Sprintf("Files analysed: %d (%d failed)", s.TotalFiles, s.FailedFiles),
		fmt.Sprintf("Methods: %d (%d skipped)", s.TotalMethods, s.SkippedMethods),
		fmt.Sprintf("Distinct opcodes: %d", s.DistinctOpcodes),
	}
}

func (st *summaryTable) RenderData() any {
	return st.summary
}

func (st *summaryTable) RenderText(w io.Writer, colored bool) error {
	if err := st.table().RenderText(w, colored); err != nil {
		return err
	}
	for _, line := range st.lines() {
		fmt.Fprintln(w, line)
	}
	return nil
}

func (st *summaryTable) RenderMarkdown(w io.Writer) error {
	if err := st.table().RenderMarkdown(w); err != nil {
		return err
	}
	return (&Section{Lines: st.lines()}).RenderMarkdown(w)
}

func warningSection(a *opcount.Analysis) *Section {
	var lines []string
	for _, f := range a.Files {
		for _, w := range f.Warnings {
			lines = append(lines, fmt.Sprintf("%s: %s", f.Path, w))
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return &Section{Title: "Warnings", Lines: lines}
}

func errorSection(a *opcount.Analysis) *Section {
	if len(a.Errors) == 0 {
		return nil
	}
	lines := make([]string, len(a.Errors))
	for i, e := range a.Errors {
		lines[i] = fmt.Sprintf("%s: %s", e.Path, e.Error)
	}
	return &Section{Title: "Errors", Lines: lines}
}

// WriteCounts writes the three-line count display.
func WriteCounts(w io.Writer, c opcount.Counts) error {
	for _, line := range c.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteAnalysisError writes the single-line failure display.
func WriteAnalysisError(w io.Writer, err error, colored bool) {
	msg := "Error analyzing file: " + err.Error()
	if colored {
		color.New(color.FgRed).Fprintln(w, msg)
		return
	}
	fmt.Fprintln(w, msg)
}
