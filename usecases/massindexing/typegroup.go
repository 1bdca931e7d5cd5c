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

package massindexing

import (
	"strings"

	"github.com/syndex/syndex/entities/indexed"
	"github.com/syndex/syndex/entities/loading"
)

// typeGroup is the set of indexed types that share a loading strategy. All
// types of a group are streamed through a single workspace, so one pass over
// the shared store feeds every index of the group.
type typeGroup struct {
	key   string
	types []indexed.Type
}

// groupByStrategy splits the given types by their strategy key. Group order
// follows the first appearance of each key, and types keep their relative
// order within a group.
func groupByStrategy(types []indexed.Type) []typeGroup {
	var groups []typeGroup
	byKey := map[string]int{}

	for _, t := range types {
		key := t.Loading.Key()
		if i, ok := byKey[key]; ok {
			groups[i].types = append(groups[i].types, t)
			continue
		}

		byKey[key] = len(groups)
		groups = append(groups, typeGroup{key: key, types: []indexed.Type{t}})
	}

	return groups
}

// name joins the type names of the group. It shows up in worker names,
// log fields and progress reports.
func (g typeGroup) name() string {
	return strings.Join(g.typeNames(), ", ")
}

func (g typeGroup) typeNames() []string {
	names := make([]string, len(g.types))
	for i, t := range g.types {
		names[i] = t.Name
	}

	return names
}

// strategy returns the loading strategy shared by the group. Types only
// end up in one group when their strategies report the same key, so any
// member's strategy speaks for the group.
func (g typeGroup) strategy() loading.Strategy {
	return g.types[0].Loading
}

func (g typeGroup) typeByName(name string) (indexed.Type, bool) {
	for _, t := range g.types {
		if t.Name == name {
			return t, true
		}
	}

	return indexed.Type{}, false
}

// indexes returns the distinct index names the group writes to, in first
// appearance order.
func (g typeGroup) indexes() []string {
	var names []string
	seen := map[string]bool{}

	for _, t := range g.types {
		if seen[t.Index] {
			continue
		}

		seen[t.Index] = true
		names = append(names, t.Index)
	}

	return names
}
