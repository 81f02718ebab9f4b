// Package validator checks suite definitions before they run.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
)

// Catalog describes what a run can dispatch.
type Catalog struct {
	// Identities are the configured identity names.
	Identities map[string]map[string]any
	// Predefined operations run without a client identity.
	Predefined map[string]bool
	// Operations supported by the bound client. Nil disables the check.
	Operations map[string]bool
}

type pending struct {
	path string
	def  *domain.SuiteDefinition
}

// ValidateSuites walks every definition, nested suites included, and reports
// cases that would fail to dispatch.
func ValidateSuites(sources []*domain.SuiteSource, cat Catalog) error {
	var errors []string
	for _, src := range sources {
		if src.Definition == nil {
			continue
		}
		queue := []pending{{path: src.Service + "/" + src.Name, def: src.Definition}}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			for _, b := range current.def.Branches {
				path := current.path
				if b.Name != "" {
					path += domain.PathSeparator + b.Name
				}
				for i, c := range b.Cases {
					where := fmt.Sprintf("%s[%d]", path, i)
					if c.Operation != "" {
						if msg := check(c, cat); msg != "" {
							errors = append(errors, fmt.Sprintf("%s %s: %s", where, c.Operation, msg))
						}
					}
					if c.Suites != nil {
						queue = append(queue, pending{path: where, def: c.Suites})
					}
				}
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}

func check(c *domain.CaseNode, cat Catalog) string {
	if cat.Predefined[c.Operation] {
		if c.ClientIdentity != "" {
			if _, ok := cat.Identities[c.ClientIdentity]; !ok {
				return fmt.Sprintf("unknown identity %q", c.ClientIdentity)
			}
		}
		return ""
	}
	if c.ClientIdentity == "" {
		return "missing clientName"
	}
	if _, ok := cat.Identities[c.ClientIdentity]; !ok {
		return fmt.Sprintf("unknown identity %q", c.ClientIdentity)
	}
	if cat.Operations != nil && !cat.Operations[c.Operation] {
		return "operation not supported by the client"
	}
	return ""
}
