package config

import (
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

// List is a list of values. In YAML it is either a sequence or a single
// comma-separated string.
type List []string

// SplitList splits a comma-separated value, dropping blank entries.
// e.g. " a.com, ,b.com " → ["a.com", "b.com"]
func SplitList(s string) List {
	var out List
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (l *List) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = SplitList(node.Value)
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		out := make(List, 0, len(values))
		for _, v := range values {
			out = append(out, SplitList(v)...)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}
