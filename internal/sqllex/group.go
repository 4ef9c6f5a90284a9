package sqllex

import "fmt"

// Node is a token tree node produced by Group.
//
// This is a sealed interface: Leaf and Paren are the only implementations,
// so a type switch over them is exhaustive.
type Node interface {
	node()

	// Start and End are byte offsets of the node in the source text.
	Start() int
	End() int
}

// Leaf wraps a single non-parenthesis token.
type Leaf struct {
	Token Token
}

func (Leaf) node() {}

// Start returns the offset of the token.
func (l Leaf) Start() int { return l.Token.Pos.Offset }

// End returns the offset just past the token.
func (l Leaf) End() int { return l.Token.End }

// Paren is a parenthesized group. Children exclude the parentheses.
type Paren struct {
	Open     Token
	Close    Token
	Children []Node
}

func (Paren) node() {}

// Start returns the offset of the opening parenthesis.
func (p Paren) Start() int { return p.Open.Pos.Offset }

// End returns the offset just past the closing parenthesis.
func (p Paren) End() int { return p.Close.End }

// GroupError reports unbalanced parentheses.
type GroupError struct {
	Pos     Position
	Message string
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("group error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Group nests tokens by parenthesis depth using an explicit stack.
// EOF and SEMICOLON tokens are dropped.
func Group(tokens []Token) ([]Node, error) {
	type frame struct {
		open     Token
		children []Node
	}

	var (
		top   []Node
		stack []*frame
	)

	appendNode := func(n Node) {
		if len(stack) == 0 {
			top = append(top, n)
			return
		}
		f := stack[len(stack)-1]
		f.children = append(f.children, n)
	}

	for _, tok := range tokens {
		switch tok.Type {
		case EOF, SEMICOLON:
			continue
		case LPAREN:
			stack = append(stack, &frame{open: tok})
		case RPAREN:
			if len(stack) == 0 {
				return nil, &GroupError{Pos: tok.Pos, Message: "unmatched ')'"}
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			appendNode(Paren{Open: f.open, Close: tok, Children: f.children})
		default:
			appendNode(Leaf{Token: tok})
		}
	}

	if len(stack) > 0 {
		return nil, &GroupError{Pos: stack[len(stack)-1].open.Pos, Message: "unclosed '('"}
	}
	return top, nil
}

// SplitTopLevel splits nodes on COMMA leaves. Commas nested inside a Paren
// are part of that Paren and never split. Empty segments are kept so callers
// can see them.
func SplitTopLevel(nodes []Node) [][]Node {
	parts := [][]Node{nil}
	for _, n := range nodes {
		if leaf, ok := n.(Leaf); ok && leaf.Token.Type == COMMA {
			parts = append(parts, nil)
			continue
		}
		parts[len(parts)-1] = append(parts[len(parts)-1], n)
	}
	return parts
}

// Text returns the source text spanned by nodes, or "" for no nodes.
func Text(src string, nodes []Node) string {
	if len(nodes) == 0 {
		return ""
	}
	return src[nodes[0].Start():nodes[len(nodes)-1].End()]
}
