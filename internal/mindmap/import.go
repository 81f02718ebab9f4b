package mindmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ImportTopics rebuilds a suite definition from an ordered list of topics.
func ImportTopics(topics []*domain.TopicNode) (*domain.SuiteDefinition, error) {
	def := &domain.SuiteDefinition{}
	if err := importLevel(def, nil, nil, topics, ""); err != nil {
		return nil, err
	}
	return def, nil
}

// ImportSheet imports one report sheet. When the root topic holds only bucket
// topics, the children of the requested buckets are imported; otherwise the
// root's children are.
func ImportSheet(sheet *domain.Sheet, buckets []string) (*domain.SuiteDefinition, error) {
	if sheet == nil || sheet.Root == nil {
		return &domain.SuiteDefinition{}, nil
	}
	root := sheet.Root
	if !onlyBuckets(root.Children) {
		return ImportTopics(root.Children)
	}

	wanted := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		wanted[strings.ToUpper(strings.TrimSpace(b))] = true
	}
	def := &domain.SuiteDefinition{}
	for _, bucket := range root.Children {
		if !wanted[bucket.Title] {
			continue
		}
		part, err := ImportTopics(bucket.Children)
		if err != nil {
			return nil, fmt.Errorf("sheet %s, bucket %s: %w", sheet.Title, bucket.Title, err)
		}
		def.Branches = append(def.Branches, part.Branches...)
	}
	return def, nil
}

func onlyBuckets(topics []*domain.TopicNode) bool {
	if len(topics) == 0 {
		return false
	}
	for _, t := range topics {
		switch t.Title {
		case domain.BucketPass, domain.BucketFailed, domain.BucketSkipped:
		default:
			return false
		}
	}
	return true
}

type entry struct {
	node     *domain.CaseNode
	children []*domain.TopicNode
	path     string
}

// importLevel handles one sibling list. def is only set at the top level;
// below it, forks attach to owner.
func importLevel(def *domain.SuiteDefinition, branch *domain.Branch, owner *domain.CaseNode, topics []*domain.TopicNode, path string) error {
	if len(topics) == 0 {
		return nil
	}

	if len(topics) == 1 {
		node, err := DecodeTopic(topics[0])
		if err != nil {
			return fmt.Errorf("%s: %w", join(path, topics[0].Title), err)
		}
		if branch == nil {
			branch = &domain.Branch{}
			def.Branches = append(def.Branches, branch)
		}
		branch.Cases = append(branch.Cases, node)
		return importLevel(nil, branch, node, topics[0].Children, join(path, topics[0].Title))
	}

	baseline := owner != nil && owner.IsHidden()
	entries := make([]entry, 0, len(topics))
	diverges := false
	for _, t := range topics {
		node, err := DecodeTopic(t)
		if err != nil {
			return fmt.Errorf("%s: %w", join(path, t.Title), err)
		}
		if node.IsHidden() != baseline {
			diverges = true
		}
		entries = append(entries, entry{node: node, children: t.Children, path: join(path, t.Title)})
	}

	var target *domain.SuiteDefinition
	switch {
	case diverges:
		target = &domain.SuiteDefinition{}
		if branch == nil {
			branch = &domain.Branch{}
			def.Branches = append(def.Branches, branch)
		}
		branch.Cases = append(branch.Cases, &domain.CaseNode{Suites: target})
	case def != nil:
		target = def
	default:
		target = &domain.SuiteDefinition{}
		owner.Suites = target
	}

	for _, e := range entries {
		b := &domain.Branch{Cases: []*domain.CaseNode{e.node}}
		target.Branches = append(target.Branches, b)
		if err := importLevel(nil, b, e.node, e.children, e.path); err != nil {
			return err
		}
	}
	return nil
}

// DecodeTopic turns one topic into a case. Notes hold a serialized case (JSON
// or YAML); the first label names the client identity, optionally suffixed
// with -<status> to declare the expected status code.
func DecodeTopic(t *domain.TopicNode) (*domain.CaseNode, error) {
	node := &domain.CaseNode{}
	if notes := strings.TrimSpace(t.Notes); notes != "" {
		if err := yaml.Unmarshal([]byte(notes), node); err != nil {
			return nil, &domain.ConfigurationError{Field: "notes", Reason: "cannot decode case", Err: err}
		}
		node.Suites = nil
	}

	if label := strings.TrimSpace(t.Label()); label != "" {
		// "bucket-owner" names the identity bucket-owner, not bucket with a
		// status. Identities may contain dashes; statuses are integers.
		identity, status, ok := parseLabel(label)
		node.ClientIdentity = identity
		if ok {
			if node.Assertion == nil {
				node.Assertion = map[string]any{}
			}
			node.Assertion[domain.StatusCodePath] = status
		} else if node.Assertion != nil {
			delete(node.Assertion, domain.StatusCodePath)
			if len(node.Assertion) == 0 {
				node.Assertion = nil
			}
		}
	}

	node.Title = t.Title
	return node, nil
}

// parseLabel splits "identity-status". A label without an integer suffix is
// an identity on its own.
func parseLabel(label string) (string, int, bool) {
	parts := strings.SplitN(label, "-", 2)
	if len(parts) != 2 {
		return label, 0, false
	}
	status, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return label, 0, false
	}
	return parts[0], status, true
}

func join(path, title string) string {
	if path == "" {
		return title
	}
	return path + "->" + title
}
