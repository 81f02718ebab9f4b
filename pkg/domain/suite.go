package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Override forces the visibility of every case directly contained in a branch.
type Override int

const (
	OverrideNone Override = iota
	OverrideHidden
	OverrideVisible
)

// Branch is one named (or anonymous) alternative at a fork point.
type Branch struct {
	Name       string
	Visibility Override
	Cases      []*CaseNode
}

// SuiteDefinition is an authored, possibly forking suite tree.
//
// On disk it takes one of two shapes. The list form is a sequence of branches,
// each a sequence of cases. The mapping form maps branch names to case
// sequences; the keys __hide__ and __not_hide__ wrap further name mappings
// whose branches get forced visibility.
type SuiteDefinition struct {
	Branches []*Branch
}

// UnmarshalYAML decodes both shapes while keeping declaration order.
func (d *SuiteDefinition) UnmarshalYAML(value *yaml.Node) error {
	d.Branches = nil
	switch value.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		if value.ShortTag() == "!!null" {
			return nil
		}
		return fmt.Errorf("line %d: suites must be a sequence or a mapping", value.Line)
	case yaml.SequenceNode:
		for _, item := range value.Content {
			var cases []*CaseNode
			if err := item.Decode(&cases); err != nil {
				return fmt.Errorf("line %d: branch must be a sequence of cases: %w", item.Line, err)
			}
			d.Branches = append(d.Branches, &Branch{Cases: cases})
		}
		return nil
	case yaml.MappingNode:
		return d.decodeNamed(value, OverrideNone)
	default:
		return fmt.Errorf("line %d: suites must be a sequence or a mapping", value.Line)
	}
}

func (d *SuiteDefinition) decodeNamed(value *yaml.Node, override Override) error {
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, body := value.Content[i], value.Content[i+1]
		if override == OverrideNone && (key.Value == KeyHide || key.Value == KeyNotHide) {
			if body.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: %s must wrap a mapping of branches", body.Line, key.Value)
			}
			wrapped := OverrideHidden
			if key.Value == KeyNotHide {
				wrapped = OverrideVisible
			}
			if err := d.decodeNamed(body, wrapped); err != nil {
				return err
			}
			continue
		}
		var cases []*CaseNode
		if err := body.Decode(&cases); err != nil {
			return fmt.Errorf("line %d: branch %q must be a sequence of cases: %w", body.Line, key.Value, err)
		}
		d.Branches = append(d.Branches, &Branch{Name: key.Value, Visibility: override, Cases: cases})
	}
	return nil
}

// MarshalYAML writes the mapping form when branches are named and the list
// form otherwise.
func (d *SuiteDefinition) MarshalYAML() (any, error) {
	named, err := d.named()
	if err != nil {
		return nil, err
	}
	if !named {
		out := make([][]*CaseNode, 0, len(d.Branches))
		for _, b := range d.Branches {
			out = append(out, b.Cases)
		}
		return out, nil
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	groups := map[Override]*yaml.Node{}
	for _, b := range d.Branches {
		target := root
		if b.Visibility != OverrideNone {
			g, ok := groups[b.Visibility]
			if !ok {
				key := KeyHide
				if b.Visibility == OverrideVisible {
					key = KeyNotHide
				}
				g = &yaml.Node{Kind: yaml.MappingNode}
				root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, g)
				groups[b.Visibility] = g
			}
			target = g
		}
		body := &yaml.Node{}
		if err := body.Encode(b.Cases); err != nil {
			return nil, err
		}
		target.Content = append(target.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: b.Name}, body)
	}
	return root, nil
}

// MarshalJSON mirrors MarshalYAML, keeping branch order in the mapping form.
func (d *SuiteDefinition) MarshalJSON() ([]byte, error) {
	named, err := d.named()
	if err != nil {
		return nil, err
	}
	if !named {
		out := make([][]*CaseNode, 0, len(d.Branches))
		for _, b := range d.Branches {
			out = append(out, b.Cases)
		}
		return json.Marshal(out)
	}

	var plain, hidden, visible []*Branch
	for _, b := range d.Branches {
		switch b.Visibility {
		case OverrideHidden:
			hidden = append(hidden, b)
		case OverrideVisible:
			visible = append(visible, b)
		default:
			plain = append(plain, b)
		}
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(k string) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
	}
	writeGroup := func(branches []*Branch) error {
		buf.WriteByte('{')
		for i, b := range branches {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(b.Name)
			buf.Write(kb)
			buf.WriteByte(':')
			cb, err := json.Marshal(b.Cases)
			if err != nil {
				return err
			}
			buf.Write(cb)
		}
		buf.WriteByte('}')
		return nil
	}
	for _, b := range plain {
		writeKey(b.Name)
		cb, err := json.Marshal(b.Cases)
		if err != nil {
			return nil, err
		}
		buf.Write(cb)
	}
	if len(hidden) > 0 {
		writeKey(KeyHide)
		if err := writeGroup(hidden); err != nil {
			return nil, err
		}
	}
	if len(visible) > 0 {
		writeKey(KeyNotHide)
		if err := writeGroup(visible); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *SuiteDefinition) named() (bool, error) {
	var named, anonymous int
	for _, b := range d.Branches {
		if b.Name != "" {
			named++
		} else {
			anonymous++
		}
	}
	if named > 0 && anonymous > 0 {
		return false, fmt.Errorf("cannot serialize a definition mixing named and anonymous branches")
	}
	return named > 0, nil
}

// SuiteState is the execution state of a LinearSuite.
type SuiteState string

const (
	SuitePending SuiteState = "pending"
	SuiteRunning SuiteState = "running"
	SuitePassed  SuiteState = "pass"
	SuiteFailed  SuiteState = "failed"
	SuiteSkipped SuiteState = "skipped"
)

// LinearSuite is one fork-free execution path.
type LinearSuite struct {
	ID          string      `json:"id"`
	Source      string      `json:"source,omitempty"`
	Cases       []*CaseNode `json:"cases"`
	FullPath    string      `json:"full_path"`
	VisiblePath string      `json:"visible_path"`
	State       SuiteState  `json:"state"`
}

// Paths returns the strings matched by include/exclude filters.
func (s *LinearSuite) Paths() []string {
	return []string{s.FullPath, s.VisiblePath, s.ID}
}

// Outcomes groups suites by their final classification.
type Outcomes struct {
	Pass    []*LinearSuite
	Failed  []*LinearSuite
	Skipped []*LinearSuite
}

// Classify buckets suites by state, keeping their relative order.
func Classify(suites []*LinearSuite) Outcomes {
	var out Outcomes
	for _, s := range suites {
		switch s.State {
		case SuitePassed:
			out.Pass = append(out.Pass, s)
		case SuiteFailed:
			out.Failed = append(out.Failed, s)
		case SuiteSkipped:
			out.Skipped = append(out.Skipped, s)
		}
	}
	return out
}

// SuiteSource is one authored definition and where it came from.
type SuiteSource struct {
	Service    string           `json:"service"`
	Name       string           `json:"name"`
	Definition *SuiteDefinition `json:"definition"`
}
