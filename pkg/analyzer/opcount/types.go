package opcount

import (
	"fmt"
	"strings"
)

// Counts holds the per-category instruction totals.
type Counts struct {
	VariableAccesses    int `json:"variable_accesses" toon:"variable_accesses"`
	ConditionalBranches int `json:"conditional_branches" toon:"conditional_branches"`
	LoopMarkers         int `json:"loop_markers" toon:"loop_markers"`
}

// Add counts one instruction of category c.
func (c *Counts) Add(cat Category) {
	switch cat {
	case VariableAccess:
		c.VariableAccesses++
	case ConditionalBranch:
		c.ConditionalBranches++
	case LoopMarker:
		c.LoopMarkers++
	}
}

// Merge adds o into c.
func (c *Counts) Merge(o Counts) {
	c.VariableAccesses += o.VariableAccesses
	c.ConditionalBranches += o.ConditionalBranches
	c.LoopMarkers += o.LoopMarkers
}

// Total returns the number of classified instructions.
func (c Counts) Total() int {
	return c.VariableAccesses + c.ConditionalBranches + c.LoopMarkers
}

// Lines returns the fixed three-line display, variables first.
func (c Counts) Lines() []string {
	return []string{
		fmt.Sprintf("Variable declarations: %d", c.VariableAccesses),
		fmt.Sprintf("Conditional branches: %d", c.ConditionalBranches),
		fmt.Sprintf("Loop opcodes: %d", c.LoopMarkers),
	}
}

func (c Counts) String() string {
	return strings.Join(c.Lines(), "\n")
}

// MethodResult is the outcome for one method.
type MethodResult struct {
	Name         string   `json:"name" toon:"name"`
	Descriptor   string   `json:"descriptor" toon:"descriptor"`
	Flags        []string `json:"flags,omitempty" toon:"flags,omitempty"`
	CodeLength   int      `json:"code_length" toon:"code_length"`
	Instructions int      `json:"instructions" toon:"instructions"`
	Counts       Counts   `json:"counts" toon:"counts"`
	// Skipped is set when decoding failed and the counts were discarded.
	Skipped bool `json:"skipped,omitempty" toon:"skipped,omitempty"`
}

// Signature returns name+descriptor.
func (m MethodResult) Signature() string {
	return m.Name + m.Descriptor
}

// Warning records a method that was skipped under the lenient policy.
type Warning struct {
	Method  string `json:"method" toon:"method"`
	Offset  int    `json:"offset" toon:"offset"`
	Message string `json:"message" toon:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at offset %d: %s", w.Method, w.Offset, w.Message)
}

// Result is the analysis of one class file.
type Result struct {
	ClassName    string         `json:"class_name" toon:"class_name"`
	MajorVersion uint16         `json:"major_version" toon:"major_version"`
	MinorVersion uint16         `json:"minor_version" toon:"minor_version"`
	Counts       Counts         `json:"counts" toon:"counts"`
	Methods      []MethodResult `json:"methods" toon:"methods"`
	Warnings     []Warning      `json:"warnings,omitempty" toon:"warnings,omitempty"`
	// DistinctOpcodes is the number of different opcodes in decoded methods.
	DistinctOpcodes int `json:"distinct_opcodes" toon:"distinct_opcodes"`

	opcodes []uint32
}

// Opcodes returns the sorted set of opcodes seen in decoded methods.
func (r *Result) Opcodes() []uint32 {
	return r.opcodes
}

// FileResult pairs a Result with the file it came from.
type FileResult struct {
	Path   string `json:"path" toon:"path"`
	Cached bool   `json:"cached,omitempty" toon:"cached,omitempty"`
	Result
}

// FileError is a file that could not be analysed.
type FileError struct {
	Path  string `json:"path" toon:"path"`
	Error string `json:"error" toon:"error"`
}

// Analysis is the result of analysing a set of files.
type Analysis struct {
	Files   []FileResult `json:"files" toon:"files"`
	Errors  []FileError  `json:"errors,omitempty" toon:"errors,omitempty"`
	Summary Summary      `json:"summary" toon:"summary"`
}

// Distribution describes one count across files.
type Distribution struct {
	Total int     `json:"total" toon:"total"`
	Mean  float64 `json:"mean" toon:"mean"`
	P90   float64 `json:"p90" toon:"p90"`
	Max   int     `json:"max" toon:"max"`
}

// Summary aggregates an Analysis.
type Summary struct {
	TotalFiles      int    `json:"total_files" toon:"total_files"`
	FailedFiles     int    `json:"failed_files" toon:"failed_files"`
	TotalMethods    int    `json:"total_methods" toon:"total_methods"`
	SkippedMethods  int    `json:"skipped_methods" toon:"skipped_methods"`
	Counts          Counts `json:"counts" toon:"counts"`
	DistinctOpcodes int    `json:"distinct_opcodes" toon:"distinct_opcodes"`

	VariableAccesses    Distribution `json:"variable_accesses" toon:"variable_accesses"`
	ConditionalBranches Distribution `json:"conditional_branches" toon:"conditional_branches"`
	LoopMarkers         Distribution `json:"loop_markers" toon:"loop_markers"`
}
