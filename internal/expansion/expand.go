// Package expansion turns authored, forking suite definitions into linear
// suites.
//
// Suites in progress are index lists into an append-only node pool, so forking
// copies a short slice instead of a case tree. Nodes are only materialized,
// one copy per suite, once every fork has been resolved.
package expansion

import (
	"fmt"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
)

type prefix []int

type arena struct {
	nodes []*domain.CaseNode
}

func (a *arena) add(n *domain.CaseNode) int {
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

// Expand returns every execution path of def as case sequences. Each returned
// case is an independent copy; def itself is left untouched.
func Expand(def *domain.SuiteDefinition) [][]*domain.CaseNode {
	a := &arena{}
	prefixes := a.expand([]prefix{{}}, def, false)

	out := make([][]*domain.CaseNode, 0, len(prefixes))
	for _, p := range prefixes {
		cases := make([]*domain.CaseNode, len(p))
		for i, idx := range p {
			cases[i] = a.nodes[idx].Clone()
		}
		out = append(out, cases)
	}
	return out
}

func (a *arena) expand(parents []prefix, def *domain.SuiteDefinition, inheritedHidden bool) []prefix {
	if def == nil || len(def.Branches) == 0 {
		return parents
	}

	var result []prefix
	for order, b := range def.Branches {
		hidden := inheritedHidden
		switch b.Visibility {
		case domain.OverrideHidden:
			hidden = true
		case domain.OverrideVisible:
			hidden = false
		}

		current := make([]prefix, len(parents))
		for i, p := range parents {
			current[i] = append(prefix(nil), p...)
		}

		cases := b.Cases
		if b.Name != "" {
			cases = append([]*domain.CaseNode{{Title: b.Name}}, cases...)
		}

		for _, authored := range cases {
			if authored == nil {
				continue
			}
			n := authored.Clone()
			nested := n.Suites
			n.Suites = nil
			n.DeclarationOrder = order

			switch {
			case b.Visibility != domain.OverrideNone:
				n.SetHidden(hidden)
			case n.Hidden == nil && hidden:
				n.SetHidden(true)
			}

			if n.Title != "" || n.Operation != "" {
				idx := a.add(n)
				for i := range current {
					current[i] = append(current[i], idx)
				}
			}
			if nested != nil {
				current = a.expand(current, nested, n.IsHidden())
			}
		}
		result = append(result, current...)
	}
	return result
}

// Linearize expands def into LinearSuites identified as <idPrefix>@__n__,
// n counting from 1. Paths with no cases are dropped.
func Linearize(idPrefix, source string, def *domain.SuiteDefinition) []*domain.LinearSuite {
	paths := Expand(def)
	out := make([]*domain.LinearSuite, 0, len(paths))
	n := 0
	for _, cases := range paths {
		if len(cases) == 0 {
			continue
		}
		n++
		full, visible := Paths(cases)
		out = append(out, &domain.LinearSuite{
			ID:          fmt.Sprintf("%s@__%d__", idPrefix, n),
			Source:      source,
			Cases:       cases,
			FullPath:    full,
			VisiblePath: visible,
			State:       domain.SuitePending,
		})
	}
	return out
}

// IDPrefix returns the identifier prefix shared by suites of one source.
func IDPrefix(service, source string) string {
	return fmt.Sprintf("__%s__@%s", service, source)
}

// Paths derives the full path (every title) and the visible path (titles of
// non-hidden nodes) of a case sequence.
func Paths(cases []*domain.CaseNode) (full, visible string) {
	all := make([]string, 0, len(cases))
	shown := make([]string, 0, len(cases))
	for _, c := range cases {
		title := c.DisplayTitle()
		all = append(all, title)
		if !c.IsHidden() {
			shown = append(shown, title)
		}
	}
	return strings.Join(all, domain.PathSeparator), strings.Join(shown, domain.PathSeparator)
}
