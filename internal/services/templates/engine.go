package templates

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/scribo/internal/common"
)

const (
	openVar    = "{{"
	closeVar   = "}}"
	openBlock  = "{%"
	closeBlock = "%}"
)

// Parse compiles a template body into a node list. Syntax problems (unclosed
// tags, unknown keywords, malformed references) fail here; undefined
// variables are a render-time concern.
func Parse(body string) ([]Node, error) {
	p := &parser{src: body}
	nodes, term, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if term != "" {
		return nil, fmt.Errorf("unexpected '{%% %s %%}'", term)
	}
	return nodes, nil
}

// Render evaluates a compiled node list against a context. With strict set,
// undefined references abort rendering; otherwise they expand to empty
// strings and empty loops.
func Render(nodes []Node, ctx map[string]interface{}, strict bool) (string, error) {
	var b strings.Builder
	if err := renderNodes(&b, nodes, &scope{vars: ctx}, strict); err != nil {
		return "", err
	}
	return b.String(), nil
}

type parser struct {
	src string
	pos int
}

// parseNodes reads nodes until EOF or one of the given terminator keywords,
// returning the terminator it consumed ("" at EOF).
func (p *parser) parseNodes(terminators []string) ([]Node, string, error) {
	var nodes []Node
	for {
		rel := nextTagIndex(p.src[p.pos:])
		if rel < 0 {
			if p.pos < len(p.src) {
				nodes = append(nodes, TextNode{Text: p.src[p.pos:]})
				p.pos = len(p.src)
			}
			if len(terminators) > 0 {
				return nil, "", fmt.Errorf("unexpected end of template, expected '{%% %s %%}'", terminators[len(terminators)-1])
			}
			return nodes, "", nil
		}
		if rel > 0 {
			nodes = append(nodes, TextNode{Text: p.src[p.pos : p.pos+rel]})
			p.pos += rel
		}

		if strings.HasPrefix(p.src[p.pos:], openVar) {
			v, err := p.parseVar()
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, v)
			continue
		}

		content, err := p.readBlock()
		if err != nil {
			return nil, "", err
		}
		fields := strings.Fields(content)
		if len(fields) == 0 {
			return nil, "", fmt.Errorf("empty '{%% %%}' tag")
		}
		keyword := fields[0]

		terminated := false
		for _, t := range terminators {
			if keyword == t {
				terminated = true
				break
			}
		}
		if terminated {
			if len(fields) > 1 {
				return nil, "", fmt.Errorf("'{%% %s %%}' takes no arguments", keyword)
			}
			return nodes, keyword, nil
		}

		switch keyword {
		case "if":
			node, err := p.parseIf(fields)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, node)
		case "for":
			node, err := p.parseFor(fields)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, node)
		case "else", "endif", "endfor":
			return nil, "", fmt.Errorf("unexpected '{%% %s %%}'", keyword)
		default:
			return nil, "", fmt.Errorf("unknown tag '{%% %s %%}'", keyword)
		}
	}
}

func (p *parser) parseIf(fields []string) (IfNode, error) {
	if len(fields) != 2 {
		return IfNode{}, fmt.Errorf("'{%% if %%}' expects a single reference, got '%s'", strings.Join(fields[1:], " "))
	}
	path, err := parseRef(fields[1])
	if err != nil {
		return IfNode{}, err
	}

	then, term, err := p.parseNodes([]string{"else", "endif"})
	if err != nil {
		return IfNode{}, err
	}
	node := IfNode{Cond: path, Raw: fields[1], Then: then}
	if term == "else" {
		node.Else, _, err = p.parseNodes([]string{"endif"})
		if err != nil {
			return IfNode{}, err
		}
	}
	return node, nil
}

func (p *parser) parseFor(fields []string) (ForNode, error) {
	if len(fields) != 4 || fields[2] != "in" {
		return ForNode{}, fmt.Errorf("'{%% for %%}' expects 'for x in xs', got '%s'", strings.Join(fields[1:], " "))
	}
	if !validIdent(fields[1]) {
		return ForNode{}, fmt.Errorf("invalid loop variable '%s'", fields[1])
	}
	path, err := parseRef(fields[3])
	if err != nil {
		return ForNode{}, err
	}

	body, _, err := p.parseNodes([]string{"endfor"})
	if err != nil {
		return ForNode{}, err
	}
	return ForNode{Var: fields[1], Collection: path, Raw: fields[3], Body: body}, nil
}

// parseVar consumes a '{{ ... }}' tag.
func (p *parser) parseVar() (VarNode, error) {
	end := strings.Index(p.src[p.pos:], closeVar)
	if end < 0 {
		return VarNode{}, fmt.Errorf("unclosed '{{' at offset %d", p.pos)
	}
	inner := p.src[p.pos+len(openVar) : p.pos+end]
	p.pos += end + len(closeVar)

	parts := strings.Split(inner, "|")
	raw := strings.TrimSpace(parts[0])
	path, err := parseRef(raw)
	if err != nil {
		return VarNode{}, err
	}

	node := VarNode{Path: path, Raw: raw}
	for _, part := range parts[1:] {
		filter, err := parseFilter(strings.TrimSpace(part))
		if err != nil {
			return VarNode{}, err
		}
		node.Filters = append(node.Filters, filter)
	}
	return node, nil
}

// readBlock consumes a '{% ... %}' tag plus one immediately following
// newline, so block tags written on their own lines leave no blank output.
func (p *parser) readBlock() (string, error) {
	end := strings.Index(p.src[p.pos:], closeBlock)
	if end < 0 {
		return "", fmt.Errorf("unclosed '{%%' at offset %d", p.pos)
	}
	content := p.src[p.pos+len(openBlock) : p.pos+end]
	p.pos += end + len(closeBlock)

	if strings.HasPrefix(p.src[p.pos:], "\r\n") {
		p.pos += 2
	} else if strings.HasPrefix(p.src[p.pos:], "\n") {
		p.pos++
	}
	return content, nil
}

func nextTagIndex(s string) int {
	iv := strings.Index(s, openVar)
	ib := strings.Index(s, openBlock)
	switch {
	case iv < 0:
		return ib
	case ib < 0:
		return iv
	case iv < ib:
		return iv
	default:
		return ib
	}
}

func parseRef(s string) ([]string, error) {
	if s == "" {
		return nil, fmt.Errorf("empty reference")
	}
	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if !validIdent(seg) {
			return nil, fmt.Errorf("invalid reference '%s'", s)
		}
	}
	return segments, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func parseFilter(s string) (FilterCall, error) {
	name := s
	arg := ""
	if open := strings.Index(s, "("); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return FilterCall{}, fmt.Errorf("malformed filter '%s'", s)
		}
		name = s[:open]
		arg = strings.TrimSpace(s[open+1 : len(s)-1])
	}

	switch name {
	case "format_date", "format_currency":
		if arg != "" {
			return FilterCall{}, fmt.Errorf("filter '%s' takes no argument", name)
		}
	case "round":
		if _, err := strconv.Atoi(arg); err != nil {
			return FilterCall{}, fmt.Errorf("filter 'round' needs an integer argument, got '%s'", arg)
		}
	default:
		return FilterCall{}, fmt.Errorf("unknown filter '%s'", name)
	}
	return FilterCall{Name: name, Arg: arg}, nil
}

// scope is a render-time variable frame; loops push child frames.
type scope struct {
	vars   map[string]interface{}
	parent *scope
}

func (s *scope) lookup(name string) (interface{}, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.vars != nil {
			if v, ok := cur.vars[name]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

func renderNodes(b *strings.Builder, nodes []Node, s *scope, strict bool) error {
	for _, n := range nodes {
		switch node := n.(type) {
		case TextNode:
			b.WriteString(node.Text)

		case VarNode:
			v, found := resolve(s, node.Path)
			if !found {
				if strict {
					return fmt.Errorf("undefined variable '%s'", node.Raw)
				}
				continue
			}
			out, err := applyFilters(v, node.Filters)
			if err != nil {
				return fmt.Errorf("'%s': %w", node.Raw, err)
			}
			b.WriteString(out)

		case IfNode:
			v, found := resolve(s, node.Cond)
			if !found && strict {
				return fmt.Errorf("undefined variable '%s'", node.Raw)
			}
			branch := node.Else
			if found && truthy(v) {
				branch = node.Then
			}
			if err := renderNodes(b, branch, s, strict); err != nil {
				return err
			}

		case ForNode:
			v, found := resolve(s, node.Collection)
			if !found {
				if strict {
					return fmt.Errorf("undefined variable '%s'", node.Raw)
				}
				continue
			}
			items := listItems(v)
			for i, item := range items {
				child := &scope{
					vars: map[string]interface{}{
						node.Var: item,
						"loop":   map[string]interface{}{"index": i + 1},
					},
					parent: s,
				}
				if err := renderNodes(b, node.Body, child, strict); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func resolve(s *scope, path []string) (interface{}, bool) {
	v, ok := s.lookup(path[0])
	if !ok {
		return nil, false
	}
	for _, seg := range path[1:] {
		v, ok = attr(v, seg)
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// attr resolves one dot-path segment against maps and structs. Struct fields
// match by json tag first, then by case-insensitive name with underscores
// ignored, so 'name_pl' reaches a NamePL field.
func attr(v interface{}, name string) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true

	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if tag := f.Tag.Get("json"); tag != "" {
				if tagName, _, _ := strings.Cut(tag, ","); tagName == name {
					return rv.Field(i).Interface(), true
				}
			}
		}
		want := foldIdent(name)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.IsExported() && foldIdent(f.Name) == want {
				return rv.Field(i).Interface(), true
			}
		}
		return nil, false
	}
	return nil, false
}

func foldIdent(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if t, ok := v.(time.Time); ok {
		return !t.IsZero()
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.Len() > 0
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}

func listItems(v interface{}) []interface{} {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

func applyFilters(v interface{}, filters []FilterCall) (string, error) {
	if len(filters) == 0 {
		return stringify(v), nil
	}

	for i, f := range filters {
		last := i == len(filters)-1
		switch f.Name {
		case "format_currency":
			fv, ok := toFloat(v)
			if !ok {
				return "", fmt.Errorf("format_currency: not a number")
			}
			if !last {
				return "", fmt.Errorf("format_currency must be the final filter")
			}
			return common.FormatAmount(fv), nil

		case "format_date":
			t, ok := toTime(v)
			if !ok {
				return "", fmt.Errorf("format_date: not a date")
			}
			if t.IsZero() {
				return "", nil
			}
			if !last {
				return "", fmt.Errorf("format_date must be the final filter")
			}
			return common.FormatDatePL(t), nil

		case "round":
			fv, ok := toFloat(v)
			if !ok {
				return "", fmt.Errorf("round: not a number")
			}
			digits, _ := strconv.Atoi(f.Arg)
			pow := math.Pow(10, float64(digits))
			rounded := math.Round(fv*pow) / pow
			if last {
				return strconv.FormatFloat(rounded, 'f', digits, 64), nil
			}
			v = rounded
		}
	}
	return stringify(v), nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return common.FormatDatePL(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		if f, err := common.ParsePolishAmount(t); err == nil {
			return f, true
		}
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, true
		}
		return *t, true
	case string:
		if t == "" {
			return time.Time{}, true
		}
		for _, layout := range []string{"2006-01-02", time.RFC3339, "02.01.2006"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}
