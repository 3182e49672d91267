package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/config"
)

func printable(b byte) bool { return b >= 0x20 && b != 0x7f }

// EncodeDB renders data as a NASM `db` definition. Printable runs are quoted
// with '"' doubled, other bytes are written as decimal values, and the list
// always ends with a zero byte.
func EncodeDB(label string, data []byte) string {
	var sb strings.Builder
	sb.WriteString(label)
	sb.WriteString(" db ")

	open := false
	first := true
	for _, b := range data {
		if printable(b) {
			if !open {
				if !first {
					sb.WriteString(", ")
				}
				sb.WriteByte('"')
				open, first = true, false
			}
			if b == '"' {
				sb.WriteString(`""`)
			} else {
				sb.WriteByte(b)
			}
			continue
		}
		if open {
			sb.WriteByte('"')
			open = false
		}
		if !first {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(b)))
		first = false
	}
	if open {
		sb.WriteByte('"')
	}
	if !first {
		sb.WriteString(", ")
	}
	sb.WriteString("0")
	return sb.String()
}

// DecodeDB parses the operand list of a line produced by EncodeDB back into
// the bytes it defines, without the terminating zero.
func DecodeDB(line string) ([]byte, error) {
	idx := strings.Index(line, " db ")
	if idx < 0 {
		return nil, fmt.Errorf("not a db definition: %q", line)
	}
	s := line[idx+len(" db "):]

	var out []byte
	for i := 0; i < len(s); {
		switch {
		case s[i] == '"':
			i++
			for {
				if i >= len(s) {
					return nil, fmt.Errorf("unterminated quoted run in %q", line)
				}
				if s[i] == '"' {
					if i+1 < len(s) && s[i+1] == '"' {
						out = append(out, '"')
						i += 2
						continue
					}
					i++
					break
				}
				out = append(out, s[i])
				i++
			}
		case s[i] >= '0' && s[i] <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			v, err := strconv.Atoi(s[i:j])
			if err != nil || v > 255 {
				return nil, fmt.Errorf("bad byte value %q in %q", s[i:j], line)
			}
			out = append(out, byte(v))
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d in %q", s[i], i, line)
		}
		if i < len(s) {
			if !strings.HasPrefix(s[i:], ", ") {
				return nil, fmt.Errorf("expected ', ' at offset %d in %q", i, line)
			}
			i += 2
		}
	}
	if len(out) == 0 || out[len(out)-1] != 0 {
		return nil, fmt.Errorf("missing zero terminator in %q", line)
	}
	return out[:len(out)-1], nil
}

// EncodeQBEData renders data as a QBE data definition with the same run
// splitting as EncodeDB, using backslash escapes inside quotes.
func EncodeQBEData(label string, data []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "data $%s = { ", label)
	open := false
	for _, b := range data {
		if printable(b) {
			if !open {
				sb.WriteString(`b "`)
				open = true
			}
			if b == '"' || b == '\\' {
				sb.WriteByte('\\')
			}
			sb.WriteByte(b)
			continue
		}
		if open {
			sb.WriteString(`", `)
			open = false
		}
		fmt.Fprintf(&sb, "b %d, ", b)
	}
	if open {
		sb.WriteString(`", `)
	}
	sb.WriteString("b 0 }")
	return sb.String()
}

// stringTable maps string literal nodes to generated labels. The AST itself is
// never rewritten.
type stringTable struct {
	labels map[*ast.Node]string
	order  []*ast.Node
}

func (st *stringTable) label(n *ast.Node) (string, bool) {
	l, ok := st.labels[n]
	return l, ok
}

// collectStrings labels every string literal argument of the statements t
// lowers, in pre-order document order: str0, str1, ...
func collectStrings(prog *ast.Node, t *Target, cfg *config.Config) *stringTable {
	st := &stringTable{labels: make(map[*ast.Node]string)}
	ast.Walk(prog, func(n *ast.Node) bool {
		switch n.Type {
		case ast.Program, ast.Function, ast.Block:
			return true
		case ast.Print:
			return t.PrintSymbol != ""
		case ast.Call:
			c := n.Data.(ast.CallNode)
			_, ok := t.lowers(cfg, c.Module, c.Name)
			return ok
		case ast.Literal:
			if n.Data.(ast.LiteralNode).Kind == ast.LitString {
				st.labels[n] = fmt.Sprintf("str%d", len(st.order))
				st.order = append(st.order, n)
			}
		}
		return false
	})
	return st
}
