package templates

// Node is one element of a compiled template body.
type Node interface {
	node()
}

// TextNode is literal output copied through unchanged.
type TextNode struct {
	Text string
}

// FilterCall is one pipe stage applied to a resolved value.
type FilterCall struct {
	Name string
	Arg  string // raw argument, e.g. "2" in round(2)
}

// VarNode is a scalar reference with optional dot path and pipe filters.
type VarNode struct {
	Path    []string
	Filters []FilterCall
	Raw     string
}

// IfNode renders Then when the referenced value is truthy, Else otherwise.
type IfNode struct {
	Cond []string
	Raw  string
	Then []Node
	Else []Node
}

// ForNode iterates a list value, binding Var and loop.index per element.
type ForNode struct {
	Var        string
	Collection []string
	Raw        string
	Body       []Node
}

func (TextNode) node() {}
func (VarNode) node()  {}
func (IfNode) node()   {}
func (ForNode) node()  {}
