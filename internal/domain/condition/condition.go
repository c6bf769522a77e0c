// Package condition models the declarative guard conditions attached to
// transition rules. A condition is a tree of field comparisons combined with
// AND/OR nodes, stored as JSON on the rule and evaluated against the entity
// field values supplied at transition time.
package condition

import (
	"encoding/json"
	"fmt"
)

// Operator identifies a comparison operator in a FieldCompare node.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpIn          Operator = "in"
	OpContains    Operator = "contains"
)

var validOperators = map[Operator]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpIn:          true,
	OpContains:    true,
}

// IsValid returns true if the operator is one of the supported comparison operators.
func (o Operator) IsValid() bool {
	return validOperators[o]
}

// Compare is a single field comparison leaf.
type Compare struct {
	Field string   `json:"field"`
	Op    Operator `json:"operator"`
	Value any      `json:"value"`
}

// Node is a tagged-variant condition tree node: exactly one of Compare, All or
// Any must be set. All combines children with AND, Any with OR. A nil Node is
// treated as an always-true condition.
type Node struct {
	Compare *Compare `json:"compare,omitempty"`
	All     []*Node  `json:"all,omitempty"`
	Any     []*Node  `json:"any,omitempty"`
}

// Parse decodes a condition tree from its JSON form. An empty document returns
// a nil node (always true).
func Parse(raw []byte) (*Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("failed to parse condition: %w", err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

// Marshal encodes the condition tree to its JSON form. A nil node encodes to nil.
func (n *Node) Marshal() ([]byte, error) {
	if n == nil {
		return nil, nil
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal condition: %w", err)
	}
	return raw, nil
}

// Validate checks the structural invariants of the tree: each node carries
// exactly one variant, comparisons name a field and a supported operator, and
// combinator nodes have at least one child.
func (n *Node) Validate() error {
	if n == nil {
		return nil
	}

	variants := 0
	if n.Compare != nil {
		variants++
	}
	if n.All != nil {
		variants++
	}
	if n.Any != nil {
		variants++
	}
	if variants != 1 {
		return fmt.Errorf("condition node must have exactly one of compare/all/any, got %d", variants)
	}

	if n.Compare != nil {
		if n.Compare.Field == "" {
			return fmt.Errorf("condition comparison is missing a field name")
		}
		if !n.Compare.Op.IsValid() {
			return fmt.Errorf("unsupported condition operator: %s", n.Compare.Op)
		}
		return nil
	}

	children := n.All
	if n.Any != nil {
		children = n.Any
	}
	if len(children) == 0 {
		return fmt.Errorf("condition combinator has no children")
	}
	for _, child := range children {
		if child == nil {
			return fmt.Errorf("condition combinator has a nil child")
		}
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}
