package core

import (
	"fmt"
	"strings"
)

// KvNode is one node of Steam's brace-delimited key-value text format.
// A node is either a leaf carrying Value or a branch carrying Children,
// never both. Children keep document order and duplicate keys are
// preserved; loginusers.vdf relies on one block per account at the same
// level.
type KvNode struct {
	Key      string
	Value    string
	Branch   bool
	Children []*KvNode
}

// NewLeaf returns a leaf node.
func NewLeaf(key, value string) *KvNode {
	return &KvNode{Key: key, Value: value}
}

// NewBranch returns an empty branch node.
func NewBranch(key string) *KvNode {
	return &KvNode{Key: key, Branch: true}
}

// Child returns the first child with the given key, or nil.
func (n *KvNode) Child(key string) *KvNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// ChildrenByKey returns every child with the given key, in document order.
func (n *KvNode) ChildrenByKey(key string) []*KvNode {
	if n == nil {
		return nil
	}
	var out []*KvNode
	for _, c := range n.Children {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

// Lookup walks a chain of child keys and returns the node at the end of
// the path, or nil if any segment is missing.
func (n *KvNode) Lookup(path ...string) *KvNode {
	cur := n
	for _, key := range path {
		cur = cur.Child(key)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// LeafValue returns the leaf value at the end of the path.
func (n *KvNode) LeafValue(path ...string) (string, bool) {
	node := n.Lookup(path...)
	if node == nil || node.Branch {
		return "", false
	}
	return node.Value, true
}

// EnsureBranch returns the first branch child with the given key, creating
// it if necessary. A leaf occupying the key is converted in place.
func (n *KvNode) EnsureBranch(key string) *KvNode {
	if c := n.Child(key); c != nil {
		if !c.Branch {
			c.Branch = true
			c.Value = ""
		}
		return c
	}
	c := NewBranch(key)
	n.Children = append(n.Children, c)
	return c
}

// SetLeaf sets the leaf child with the given key to value, appending a new
// child if none exists.
func (n *KvNode) SetLeaf(key, value string) {
	if c := n.Child(key); c != nil {
		c.Branch = false
		c.Children = nil
		c.Value = value
		return
	}
	n.Children = append(n.Children, NewLeaf(key, value))
}

// RemoveChild deletes every child with the given key and reports whether
// anything was removed.
func (n *KvNode) RemoveChild(key string) bool {
	removed := false
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.Key == key {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	n.Children = kept
	return removed
}

// Serialize renders the node back to KV text. The output is normalized
// (tab indentation, quoted keys) rather than byte-identical to the parsed
// input, but reparsing it yields an equal tree.
func (n *KvNode) Serialize() string {
	var sb strings.Builder
	n.write(&sb, 0)
	return sb.String()
}

func (n *KvNode) write(sb *strings.Builder, depth int) {
	indent := strings.Repeat("\t", depth)
	if n.Branch {
		sb.WriteString(indent)
		sb.WriteString(quoteKv(n.Key))
		sb.WriteString("\n")
		sb.WriteString(indent)
		sb.WriteString("{\n")
		for _, c := range n.Children {
			c.write(sb, depth+1)
		}
		sb.WriteString(indent)
		sb.WriteString("}\n")
		return
	}
	sb.WriteString(indent)
	sb.WriteString(quoteKv(n.Key))
	sb.WriteString("\t\t")
	sb.WriteString(quoteKv(n.Value))
	sb.WriteString("\n")
}

func quoteKv(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

type kvToken int

const (
	tokEOF kvToken = iota
	tokString
	tokOpen
	tokClose
)

// kvScanner tokenizes KV text. It tracks line and column so parse errors
// can point at the offending byte.
type kvScanner struct {
	src  string
	pos  int
	line int
	col  int
}

func newKvScanner(src string) *kvScanner {
	return &kvScanner{src: src, line: 1, col: 1}
}

func (s *kvScanner) errorf(format string, args ...any) *ParseError {
	return &ParseError{Line: s.line, Column: s.col, Msg: fmt.Sprintf(format, args...)}
}

func (s *kvScanner) advance() byte {
	ch := s.src[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *kvScanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			s.advance()
		case ch == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.advance()
			}
		default:
			return
		}
	}
}

// next returns the next token and, for tokString, its decoded text.
func (s *kvScanner) next() (kvToken, string, *ParseError) {
	s.skipSpaceAndComments()
	if s.pos >= len(s.src) {
		return tokEOF, "", nil
	}

	switch s.src[s.pos] {
	case '{':
		s.advance()
		return tokOpen, "", nil
	case '}':
		s.advance()
		return tokClose, "", nil
	case '"':
		return s.scanQuoted()
	}
	return s.scanBare()
}

func (s *kvScanner) scanQuoted() (kvToken, string, *ParseError) {
	start := *s
	s.advance() // opening quote
	var sb strings.Builder
	for s.pos < len(s.src) {
		ch := s.advance()
		switch ch {
		case '"':
			return tokString, sb.String(), nil
		case '\n':
			return tokEOF, "", start.errorf("newline in quoted string")
		case '\\':
			if s.pos >= len(s.src) {
				return tokEOF, "", start.errorf("unterminated string")
			}
			esc := s.advance()
			switch esc {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				// Lenient: unknown escapes keep the escaped character.
				sb.WriteByte(esc)
			}
		default:
			sb.WriteByte(ch)
		}
	}
	return tokEOF, "", start.errorf("unterminated string")
}

// scanBare handles the unquoted tokens some manifests use for keys and
// numeric values.
func (s *kvScanner) scanBare() (kvToken, string, *ParseError) {
	var sb strings.Builder
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' ||
			ch == '{' || ch == '}' || ch == '"' {
			break
		}
		if ch == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
			break
		}
		sb.WriteByte(ch)
		s.advance()
	}
	if sb.Len() == 0 {
		return tokEOF, "", s.errorf("unexpected character %q", s.src[s.pos])
	}
	return tokString, sb.String(), nil
}

// kvParser carries a single token of lookahead over the scanner, the same
// scan/unscan shape the vdf package uses.
type kvParser struct {
	s      *kvScanner
	buf    kvToken
	bufLit string
	bufSet bool
}

func (p *kvParser) scan() (kvToken, string, *ParseError) {
	if p.bufSet {
		p.bufSet = false
		return p.buf, p.bufLit, nil
	}
	tok, lit, err := p.s.next()
	p.buf, p.bufLit = tok, lit
	return tok, lit, err
}

func (p *kvParser) unscan() {
	p.bufSet = true
}

// ParseKv parses a complete KV document into its root node. The document
// must contain exactly one top-level pair; trailing whitespace and
// comments are ignored.
func ParseKv(text string) (*KvNode, error) {
	p := &kvParser{s: newKvScanner(text)}

	root, err := p.parsePair()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, p.s.errorf("empty document")
	}

	tok, lit, err := p.scan()
	if err != nil {
		return nil, err
	}
	if tok != tokEOF {
		return nil, p.s.errorf("unexpected content %q after document root", lit)
	}
	return root, nil
}

// parsePair parses one "key" "value" or "key" { ... } pair. It returns
// nil without error when the next token ends the enclosing block.
func (p *kvParser) parsePair() (*KvNode, *ParseError) {
	tok, key, err := p.scan()
	if err != nil {
		return nil, err
	}
	switch tok {
	case tokEOF, tokClose:
		p.unscan()
		return nil, nil
	case tokOpen:
		return nil, p.s.errorf("expected key before '{'")
	}

	tok, value, err := p.scan()
	if err != nil {
		return nil, err
	}
	switch tok {
	case tokString:
		return NewLeaf(key, value), nil
	case tokOpen:
		node := NewBranch(key)
		for {
			child, err := p.parsePair()
			if err != nil {
				return nil, err
			}
			if child == nil {
				break
			}
			node.Children = append(node.Children, child)
		}
		tok, _, err := p.scan()
		if err != nil {
			return nil, err
		}
		if tok != tokClose {
			return nil, p.s.errorf("unclosed block %q", key)
		}
		return node, nil
	case tokClose:
		return nil, p.s.errorf("key %q has no value", key)
	default:
		return nil, p.s.errorf("unexpected end of input after key %q", key)
	}
}
