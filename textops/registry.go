package textops

import "texttools/common"

// Func is a pure transform from input text to a result record.
type Func func(text string) interface{}

// Registry maps operation names to their functions. It is built once and
// read-only afterwards.
type Registry struct {
	byName map[string]Op
	funcs  map[Op]Func
	order  []Op
}

// NewRegistry returns a registry holding the given operations, in order.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{
		byName: make(map[string]Op, len(entries)),
		funcs:  make(map[Op]Func, len(entries)),
	}
	for _, e := range entries {
		if _, dup := r.funcs[e.Op]; !dup {
			r.order = append(r.order, e.Op)
		}
		r.byName[e.Op.String()] = e.Op
		r.funcs[e.Op] = e.Fn
	}
	return r
}

// Entry binds an Op to its implementation.
type Entry struct {
	Op Op
	Fn Func
}

// Default returns the registry with stats, shout and palindrome.
func Default() *Registry {
	return NewRegistry(
		Entry{Op: OpStats, Fn: Stats},
		Entry{Op: OpShout, Fn: Shout},
		Entry{Op: OpPalindrome, Fn: Palindrome},
	)
}

// Resolve maps a name to its Op.
func (r *Registry) Resolve(name string) (Op, error) {
	op, ok := r.byName[name]
	if !ok {
		return 0, &common.UnsupportedOperationError{Op: name}
	}
	return op, nil
}

// Lookup returns the function registered for name.
func (r *Registry) Lookup(name string) (Func, error) {
	op, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.funcs[op], nil
}

// Names lists the supported operation names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, op := range r.order {
		names = append(names, op.String())
	}
	return names
}
