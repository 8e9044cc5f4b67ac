package catalog

import (
	"errors"

	"github.com/roach88/doccore/internal/ir"
)

// ErrNotInvertible is returned by Invert when no upstream values can
// produce the requested value.
var ErrNotInvertible = errors.New("not invertible")

// DataValue is one resolved dependency value handed to an updater.
type DataValue struct {
	Value       ir.Value
	Changed     bool
	FromDefault bool

	// Text is set for values that came from authored text rather than a prop.
	Text bool

	// Dep is the position, within its query, of the dependency that produced
	// this value. A group dependency produces several values with one Dep.
	Dep int
}

// QueryResult holds the values produced by one DataQuery, in order.
type QueryResult struct {
	Values []DataValue
}

// First returns the first value, or nil if there is none.
func (q QueryResult) First() (DataValue, bool) {
	if len(q.Values) == 0 {
		return DataValue{}, false
	}
	return q.Values[0], true
}

// AnyChanged reports whether any value changed since the last calculation.
func (q QueryResult) AnyChanged() bool {
	for _, v := range q.Values {
		if v.Changed {
			return true
		}
	}
	return false
}

// Result is the outcome of a calculation.
type Result struct {
	Value       ir.Value
	NoChange    bool
	FromDefault bool
}

// Request asks inversion to set data[Query].Values[Index] to Value.
type Request struct {
	Query int
	Index int
	Value ir.Value
}

// Updater computes a prop from its dependency values and, where possible,
// computes the dependency values that would produce a requested prop value.
type Updater interface {
	Calculate(data []QueryResult) (Result, error)
	Invert(data []QueryResult, requested ir.Value) ([]Request, error)
}

// Funcs adapts plain functions to Updater. A nil Inv makes the prop
// non-invertible.
type Funcs struct {
	Calc func(data []QueryResult) (Result, error)
	Inv  func(data []QueryResult, requested ir.Value) ([]Request, error)
}

func (f Funcs) Calculate(data []QueryResult) (Result, error) {
	return f.Calc(data)
}

func (f Funcs) Invert(data []QueryResult, requested ir.Value) ([]Request, error) {
	if f.Inv == nil {
		return nil, ErrNotInvertible
	}
	return f.Inv(data, requested)
}

// Identity passes through the first value of the first query and inverts
// by requesting that same value upstream. With no upstream value the
// prop takes def.
func Identity(def ir.Value) Updater {
	return Funcs{
		Calc: func(data []QueryResult) (Result, error) {
			if len(data) == 0 {
				return Result{Value: def, FromDefault: true}, nil
			}
			v, ok := data[0].First()
			if !ok {
				return Result{Value: def, FromDefault: true}, nil
			}
			return Result{Value: v.Value, FromDefault: v.FromDefault}, nil
		},
		Inv: func(data []QueryResult, requested ir.Value) ([]Request, error) {
			if len(data) == 0 || len(data[0].Values) == 0 {
				return nil, ErrNotInvertible
			}
			return []Request{{Query: 0, Index: 0, Value: requested}}, nil
		},
	}
}
