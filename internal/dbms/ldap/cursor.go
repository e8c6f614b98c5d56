package ldap

import (
	"context"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// cursor executes one parsed expression. Search results are held in
// memory and served by Next/Scan.
type cursor struct {
	session *Session
	spec    dbms.CursorSpec
	op      operation

	entries []*ldap.Entry
	current int
}

func (c *cursor) Execute(ctx context.Context, args []any) error {
	_ = c.Reset()
	s := c.session
	if s.closed() {
		return notOpen()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch c.op.kind {
	case opSearch:
		return c.search(args)
	case opModify:
		var req *ldap.ModifyRequest
		if req, err = c.op.modifyRequest(args); err == nil {
			err = toNative(s.client.Modify(req), s.closed())
		}
	case opAdd:
		var req *ldap.AddRequest
		if req, err = c.op.addRequest(args); err == nil {
			err = toNative(s.client.Add(req), s.closed())
		}
	case opDelete:
		var req *ldap.DelRequest
		if req, err = c.op.delRequest(args); err == nil {
			err = toNative(s.client.Del(req), s.closed())
		}
	}
	return err
}

func (c *cursor) search(args []any) error {
	s := c.session
	req, err := c.op.searchRequest(args, 0)
	if err != nil {
		return err
	}
	res, err := s.client.Search(req)
	if err != nil {
		return toNative(err, s.closed())
	}
	if len(res.Entries) == 0 && c.spec.Outputs > 0 {
		return noData()
	}
	c.entries = res.Entries
	return nil
}

func (c *cursor) Next(context.Context) (bool, error) {
	if c.current >= len(c.entries) {
		_ = c.Reset()
		return false, nil
	}
	c.current++
	return true, nil
}

// Scan copies the current entry's attributes, in selection order, into
// *any destinations. Absent attributes scan as nil.
func (c *cursor) Scan(dest []any) error {
	if c.current == 0 || c.current > len(c.entries) {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeUnknown, Message: "scan without a current entry"}
	}
	entry := c.entries[c.current-1]
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok || i >= len(c.op.attrs) {
			return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeUnknown, Message: "bad scan destination"}
		}
		*p = attributeValue(entry, c.op.attrs[i])
	}
	return nil
}

func attributeValue(entry *ldap.Entry, attr string) any {
	if strings.EqualFold(attr, "dn") {
		return entry.DN
	}
	for _, a := range entry.Attributes {
		if strings.EqualFold(a.Name, attr) && len(a.Values) > 0 {
			return a.Values[0]
		}
	}
	return nil
}

func (c *cursor) Reset() error {
	c.entries = nil
	c.current = 0
	return nil
}

func (c *cursor) Close() error { return c.Reset() }
