package assistant

import (
	"context"
	"fmt"
)

// Param documents one argument of an operation for the model.
type Param struct {
	Name     string
	Type     string
	Doc      string
	Required bool
}

// Example is a worked message → arguments pair shown in the prompt.
type Example struct {
	Message   string
	Arguments string
}

// Descriptor is the static description of one operation.
type Descriptor struct {
	Operation   Operation
	Description string
	Params      []Param
	Examples    []Example
	// Mutates marks operations that write to the ledger.
	Mutates bool
	// Decode turns untrusted arguments into the operation's typed record.
	Decode func(in ArgsInput) (Args, error)
}

// Executor runs one operation and renders its reply.
type Executor interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, args Args) (string, error)
}

// Registry is the closed, immutable table of executors.
type Registry struct {
	byName map[Operation]Executor
	order  []Operation
}

// NewRegistry builds a registry. It rejects operations outside the closed set,
// duplicates and descriptors without a decoder.
func NewRegistry(executors ...Executor) (*Registry, error) {
	r := &Registry{byName: make(map[Operation]Executor, len(executors))}
	for _, e := range executors {
		d := e.Descriptor()
		if !IsKnown(d.Operation) {
			return nil, fmt.Errorf("NewRegistry: %w: %q", ErrUnknownOperation, d.Operation)
		}
		if _, dup := r.byName[d.Operation]; dup {
			return nil, fmt.Errorf("NewRegistry: operation %q registered twice", d.Operation)
		}
		if d.Decode == nil {
			return nil, fmt.Errorf("NewRegistry: operation %q has no decoder", d.Operation)
		}
		r.byName[d.Operation] = e
		r.order = append(r.order, d.Operation)
	}
	return r, nil
}

// Resolve looks up an executor by exact name.
func (r *Registry) Resolve(op Operation) (Executor, bool) {
	e, ok := r.byName[op]
	return e, ok
}

// Descriptors returns descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, op := range r.order {
		out = append(out, r.byName[op].Descriptor())
	}
	return out
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.order)
}
