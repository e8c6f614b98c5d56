package ldap

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-ldap/ldap/v3"
)

// generalizedTime is the LDAP timestamp syntax used for date inputs.
const generalizedTime = "20060102150405Z"

type opKind string

const (
	opSearch opKind = "search"
	opModify opKind = "modify"
	opAdd    opKind = "add"
	opDelete opKind = "delete"
)

// attribute is one attr=value pair of a modify or add expression.
type attribute struct {
	name  string
	value template
}

// operation is a parsed statement expression.
type operation struct {
	kind opKind

	dn     template // base DN for searches
	attrs  []string
	scope  int
	filter template

	changes []attribute
}

// template is text with {n} placeholders.
type template struct {
	parts []string // literal text; len(parts) == len(slots)+1
	slots []int
}

func parseTemplate(s string) (template, error) {
	var t template
	var lit strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			lit.WriteByte(s[i])
			continue
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return template{}, errors.Wrapf(ErrBadExpression, "unterminated placeholder in %q", s)
		}
		n, err := strconv.Atoi(s[i+1 : i+end])
		if err != nil || n < 0 {
			return template{}, errors.Wrapf(ErrBadExpression, "bad placeholder %q", s[i:i+end+1])
		}
		t.parts = append(t.parts, lit.String())
		t.slots = append(t.slots, n)
		lit.Reset()
		i += end
	}
	t.parts = append(t.parts, lit.String())
	return t, nil
}

// render substitutes args, escaping each with escape. A null argument
// renders as an empty string; isNull reports whether the whole template
// was a single placeholder bound to null.
func (t template) render(args []any, escape func(string) string) (out string, isNull bool, err error) {
	var b strings.Builder
	for i, slot := range t.slots {
		b.WriteString(t.parts[i])
		if slot >= len(args) {
			return "", false, errors.Wrapf(ErrPlaceholder, "{%d} with %d inputs", slot, len(args))
		}
		if args[slot] == nil {
			isNull = len(t.slots) == 1 && t.parts[0] == "" && t.parts[1] == ""
			continue
		}
		b.WriteString(escape(text(args[slot])))
	}
	b.WriteString(t.parts[len(t.parts)-1])
	return b.String(), isNull, nil
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(generalizedTime)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func raw(s string) string { return s }

// escapeDN escapes an attribute value for use in a distinguished name (RFC 4514).
func escapeDN(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ',' || c == '+' || c == '"' || c == '\\' || c == '<' || c == '>' || c == ';' || c == '=':
			b.WriteByte('\\')
			b.WriteByte(c)
		case (c == ' ' || c == '#') && i == 0, c == ' ' && i == len(s)-1:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == 0:
			b.WriteString(`\00`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var scopes = map[string]int{
	"base": ldap.ScopeBaseObject,
	"one":  ldap.ScopeSingleLevel,
	"sub":  ldap.ScopeWholeSubtree,
}

func parseExpression(expr string) (operation, error) {
	expr = strings.TrimSpace(expr)
	prefix, rest, hasPrefix := strings.Cut(expr, ":")
	if hasPrefix {
		switch opKind(strings.ToLower(prefix)) {
		case opModify:
			return parseChanges(opModify, rest)
		case opAdd:
			return parseChanges(opAdd, rest)
		case opDelete:
			dn, err := parseTemplate(strings.TrimSpace(rest))
			if err != nil {
				return operation{}, err
			}
			return operation{kind: opDelete, dn: dn}, nil
		}
		// A colon inside a search filter or DN is not a prefix.
	}
	return parseSearch(expr)
}

func parseSearch(expr string) (operation, error) {
	fields := strings.SplitN(expr, "?", 4)
	if len(fields) != 4 {
		return operation{}, errors.Wrapf(ErrBadExpression, "search %q: want base?attrs?scope?filter", expr)
	}
	op := operation{kind: opSearch}

	var err error
	if op.dn, err = parseTemplate(fields[0]); err != nil {
		return operation{}, err
	}
	for _, a := range strings.Split(fields[1], ",") {
		if a = strings.TrimSpace(a); a != "" {
			op.attrs = append(op.attrs, a)
		}
	}
	scope, ok := scopes[strings.ToLower(strings.TrimSpace(fields[2]))]
	if !ok {
		return operation{}, errors.Wrapf(ErrBadExpression, "search %q: unknown scope %q", expr, fields[2])
	}
	op.scope = scope
	filter := strings.TrimSpace(fields[3])
	if filter == "" {
		filter = "(objectClass=*)"
	}
	if op.filter, err = parseTemplate(filter); err != nil {
		return operation{}, err
	}
	return op, nil
}

func parseChanges(kind opKind, rest string) (operation, error) {
	dn, changes, _ := strings.Cut(rest, "?")
	op := operation{kind: kind}

	var err error
	if op.dn, err = parseTemplate(strings.TrimSpace(dn)); err != nil {
		return operation{}, err
	}
	for _, pair := range strings.Split(changes, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return operation{}, errors.Wrapf(ErrBadExpression, "%s %q: want attr=value, got %q", kind, rest, pair)
		}
		t, err := parseTemplate(value)
		if err != nil {
			return operation{}, err
		}
		op.changes = append(op.changes, attribute{name: strings.TrimSpace(name), value: t})
	}
	if len(op.changes) == 0 {
		return operation{}, errors.Wrapf(ErrBadExpression, "%s %q has no attributes", kind, rest)
	}
	return op, nil
}

func (op operation) searchRequest(args []any, sizeLimit int) (*ldap.SearchRequest, error) {
	base, _, err := op.dn.render(args, escapeDN)
	if err != nil {
		return nil, err
	}
	filter, _, err := op.filter.render(args, ldap.EscapeFilter)
	if err != nil {
		return nil, err
	}
	return ldap.NewSearchRequest(base, op.scope, ldap.NeverDerefAliases, sizeLimit, 0, false,
		filter, op.attrs, nil), nil
}

func (op operation) modifyRequest(args []any) (*ldap.ModifyRequest, error) {
	dn, _, err := op.dn.render(args, escapeDN)
	if err != nil {
		return nil, err
	}
	req := ldap.NewModifyRequest(dn, nil)
	for _, c := range op.changes {
		v, isNull, err := c.value.render(args, raw)
		if err != nil {
			return nil, err
		}
		if isNull {
			req.Replace(c.name, []string{})
			continue
		}
		req.Replace(c.name, []string{v})
	}
	return req, nil
}

func (op operation) addRequest(args []any) (*ldap.AddRequest, error) {
	dn, _, err := op.dn.render(args, escapeDN)
	if err != nil {
		return nil, err
	}
	req := ldap.NewAddRequest(dn, nil)
	values := map[string][]string{}
	var order []string
	for _, c := range op.changes {
		v, isNull, err := c.value.render(args, raw)
		if err != nil {
			return nil, err
		}
		if isNull {
			continue
		}
		if _, seen := values[c.name]; !seen {
			order = append(order, c.name)
		}
		values[c.name] = append(values[c.name], v)
	}
	for _, name := range order {
		req.Attribute(name, values[name])
	}
	return req, nil
}

func (op operation) delRequest(args []any) (*ldap.DelRequest, error) {
	dn, _, err := op.dn.render(args, escapeDN)
	if err != nil {
		return nil, err
	}
	return ldap.NewDelRequest(dn, nil), nil
}
