//                      _
//  ___ _   _ _ __   __| | _____  __
// / __| | | | '_ \ / _` |/ _ \ \/ /
// \__ \ |_| | | | | (_| |  __/>  <
// |___/\__, |_| |_|\__,_|\___/_/\_\
//      |___/
//
//  Copyright © 2019 - 2026 Syndex B.V. All rights reserved.
//
//  CONTACT: hello@syndex.io
//

package indexed

import "github.com/pkg/errors"

// Registry holds the full set of indexed types. It is populated once at
// startup and read-only afterwards, so it needs no locking.
type Registry struct {
	types map[string]Type
	order []string
}

func NewRegistry() *Registry {
	return &Registry{types: map[string]Type{}}
}

func (r *Registry) Add(t Type) error {
	if t.Name == "" {
		return errors.New("indexed type: empty name")
	}
	if t.Index == "" {
		return errors.Errorf("indexed type %s: empty index", t.Name)
	}
	if t.Builder == nil {
		return errors.Errorf("indexed type %s: nil document builder", t.Name)
	}
	if t.Loading == nil {
		return errors.Errorf("indexed type %s: nil loading strategy", t.Name)
	}
	if _, ok := r.types[t.Name]; ok {
		return errors.Errorf("indexed type %s already registered", t.Name)
	}

	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Types returns all registered types in registration order.
func (r *Registry) Types() []Type {
	out := make([]Type, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Select returns the named subset in registration order. With no names it
// returns all types. Unknown names are an error.
func (r *Registry) Select(names ...string) ([]Type, error) {
	if len(names) == 0 {
		return r.Types(), nil
	}

	selected := map[string]bool{}
	for _, name := range names {
		if _, ok := r.types[name]; !ok {
			return nil, errors.Errorf("unknown indexed type %q", name)
		}
		selected[name] = true
	}

	out := make([]Type, 0, len(selected))
	for _, name := range r.order {
		if selected[name] {
			out = append(out, r.types[name])
		}
	}
	return out, nil
}

func (r *Registry) Len() int {
	return len(r.order)
}
