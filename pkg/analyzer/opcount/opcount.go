// Package opcount counts loop markers, conditional branches and local
// variable accesses in the methods of compiled class files.
package opcount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/classmeter/pkg/bytecode"
	"github.com/panbanda/classmeter/pkg/classfile"
)

// Analyze parses data as a class file and classifies every instruction of
// every method.
//
// Structural errors are returned as-is with a nil Result. A method whose
// bytecode fails to decode is skipped with a Warning unless WithStrict is
// set, in which case the first such error is returned.
func Analyze(data []byte, opts ...Option) (*Result, error) {
	return AnalyzeContext(context.Background(), data, opts...)
}

// AnalyzeContext is Analyze with cancellation checked between methods.
func AnalyzeContext(ctx context.Context, data []byte, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ClassName:    cf.ClassName(),
		MajorVersion: cf.MajorVersion,
		MinorVersion: cf.MinorVersion,
		Methods:      make([]MethodResult, 0, len(cf.Methods)),
	}
	seen := roaring.New()

	for i := range cf.Methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := &cf.Methods[i]
		mr := MethodResult{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Flags:      m.Flags(),
		}
		if m.Code == nil {
			res.Methods = append(res.Methods, mr)
			continue
		}
		mr.CodeLength = len(m.Code.Code)

		counts, n, ops, err := countMethod(m.Code.Code)
		if err != nil {
			if o.strict {
				return nil, fmt.Errorf("method %s: %w", m.Signature(), err)
			}
			offset := 0
			var de *bytecode.DecodeError
			if errors.As(err, &de) {
				offset = de.Offset
			}
			mr.Skipped = true
			res.Warnings = append(res.Warnings, Warning{Method: m.Signature(), Offset: offset, Message: err.Error()})
			res.Methods = append(res.Methods, mr)
			continue
		}

		mr.Counts = counts
		mr.Instructions = n
		res.Counts.Merge(counts)
		seen.Or(ops)
		res.Methods = append(res.Methods, mr)
	}

	res.opcodes = seen.ToArray()
	res.DistinctOpcodes = len(res.opcodes)
	return res, nil
}

// countMethod folds the classifier over one code array. Nothing is
// returned on error so a failed method contributes no partial counts.
func countMethod(code []byte) (Counts, int, *roaring.Bitmap, error) {
	var counts Counts
	ops := roaring.New()
	n := 0
	for in, err := range bytecode.Instructions(code) {
		if err != nil {
			return Counts{}, 0, nil, err
		}
		counts.Add(Classify(in.Opcode))
		ops.Add(uint32(in.Opcode))
		n++
	}
	return counts, n, ops, nil
}

// AnalyzeReader reads r to the end and analyses the bytes.
func AnalyzeReader(r io.Reader, opts ...Option) (*Result, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", classfile.ErrInvalidInput)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading class data: %w", classfile.ErrInvalidInput, err)
	}
	return Analyze(data, opts...)
}

// AnalyzeFile opens path and analyses its contents.
func AnalyzeFile(path string, opts ...Option) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", classfile.ErrInvalidInput, err)
	}
	defer f.Close()
	return AnalyzeReader(f, opts...)
}
