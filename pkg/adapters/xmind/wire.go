// Package xmind reads and writes mind-map archives: a zip holding
// content.json (the sheets), manifest.json and metadata.json.
package xmind

import (
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/google/uuid"
)

const (
	contentEntry  = "content.json"
	manifestEntry = "manifest.json"
	metadataEntry = "metadata.json"

	rootStructure = "org.xmind.ui.logic.right"
	foldedBranch  = "folded"
)

type sheet struct {
	ID               string `json:"id,omitempty"`
	Class            string `json:"class,omitempty"`
	Title            string `json:"title"`
	TopicPositioning string `json:"topicPositioning,omitempty"`
	RootTopic        *topic `json:"rootTopic"`
}

type topic struct {
	ID             string    `json:"id,omitempty"`
	Class          string    `json:"class,omitempty"`
	Title          string    `json:"title"`
	StructureClass string    `json:"structureClass,omitempty"`
	Branch         string    `json:"branch,omitempty"`
	Notes          *notes    `json:"notes,omitempty"`
	Labels         []string  `json:"labels,omitempty"`
	Markers        []marker  `json:"markers,omitempty"`
	Style          *style    `json:"style,omitempty"`
	Children       *children `json:"children,omitempty"`
}

type notes struct {
	Plain struct {
		Content string `json:"content"`
	} `json:"plain"`
}

type marker struct {
	MarkerID string `json:"markerId"`
}

type style struct {
	Properties map[string]string `json:"properties"`
}

type children struct {
	Attached []*topic `json:"attached,omitempty"`
}

func toWire(s *domain.Sheet) *sheet {
	root := toTopic(s.Root)
	if root != nil {
		root.StructureClass = rootStructure
	}
	return &sheet{
		ID:               uuid.NewString(),
		Class:            "sheet",
		Title:            s.Title,
		TopicPositioning: "fixed",
		RootTopic:        root,
	}
}

func toTopic(n *domain.TopicNode) *topic {
	if n == nil {
		return nil
	}
	t := &topic{
		ID:     uuid.NewString(),
		Class:  "topic",
		Title:  n.Title,
		Labels: n.Labels,
	}
	if n.Notes != "" {
		t.Notes = &notes{}
		t.Notes.Plain.Content = n.Notes
	}
	for _, m := range n.Markers {
		t.Markers = append(t.Markers, marker{MarkerID: m})
	}
	if len(n.Style) > 0 {
		t.Style = &style{Properties: n.Style}
	}
	if n.Folded {
		t.Branch = foldedBranch
	}
	if len(n.Children) > 0 {
		t.Children = &children{}
		for _, c := range n.Children {
			t.Children.Attached = append(t.Children.Attached, toTopic(c))
		}
	}
	return t
}

func fromWire(s *sheet) *domain.Sheet {
	return &domain.Sheet{Title: s.Title, Root: fromTopic(s.RootTopic)}
}

func fromTopic(t *topic) *domain.TopicNode {
	if t == nil {
		return nil
	}
	n := &domain.TopicNode{
		Title:  t.Title,
		Labels: t.Labels,
		Folded: t.Branch == foldedBranch,
	}
	if t.Notes != nil {
		n.Notes = t.Notes.Plain.Content
	}
	for _, m := range t.Markers {
		n.Markers = append(n.Markers, m.MarkerID)
	}
	if t.Style != nil {
		n.Style = t.Style.Properties
	}
	if t.Children != nil {
		for _, c := range t.Children.Attached {
			n.Children = append(n.Children, fromTopic(c))
		}
	}
	return n
}
