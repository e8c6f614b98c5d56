package postgres

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// lobOutput decodes an oid column into the large object's bytes and
// writes the value back on request.
type lobOutput struct {
	*dbms.GenericOutput
	oid   uint32
	valid bool
}

func newLOBOutput(v datatype.Value) *lobOutput {
	return &lobOutput{GenericOutput: dbms.NewGenericOutput(v)}
}

func (b *lobOutput) session() (*Session, error) {
	c, ok := b.Cursor().(*cursor)
	if !ok {
		return nil, errors.AssertionFailedf("postgres: large object output %q is not attached to a postgres cursor", b.Value().Name())
	}
	return c.session, nil
}

// Decode implements dbms.Output.
func (b *lobOutput) Decode(ctx context.Context) error {
	b.valid = false
	raw := b.Scanned()
	if raw == nil {
		return b.Value().Assign(nil)
	}
	oid, ok := raw.(uint32)
	if !ok {
		return errors.Wrapf(datatype.ErrUnsupportedSource, "long block %q: expected an oid column, got %T", b.Value().Name(), raw)
	}
	s, err := b.session()
	if err != nil {
		return err
	}

	var data []byte
	err = s.largeObjects(ctx, func(los *pgx.LargeObjects) error {
		obj, err := los.Open(ctx, oid, pgx.LargeObjectModeRead)
		if err != nil {
			return toNative(err, s.closed())
		}
		defer obj.Close() //nolint:errcheck // Read-only handle
		data, err = io.ReadAll(obj)
		return toNative(err, s.closed())
	})
	if err != nil {
		return err
	}
	if err := b.Value().Assign(data); err != nil {
		return err
	}
	b.oid = oid
	b.valid = true
	return nil
}

// Write implements dbms.LOBWriter.
func (b *lobOutput) Write(ctx context.Context) error {
	if !b.valid {
		return errors.Wrapf(dbms.ErrNotExecuted, "large object %q has not been fetched", b.Value().Name())
	}
	block, err := datatype.AsBlock(b.Value())
	if err != nil {
		return err
	}
	data, err := block.Value()
	if err != nil {
		return err
	}
	s, err := b.session()
	if err != nil {
		return err
	}
	return s.largeObjects(ctx, func(los *pgx.LargeObjects) error {
		obj, err := los.Open(ctx, b.oid, pgx.LargeObjectModeWrite)
		if err != nil {
			return toNative(err, s.closed())
		}
		defer obj.Close() //nolint:errcheck // Closed on commit
		if err := obj.Truncate(0); err != nil {
			return toNative(err, s.closed())
		}
		_, err = obj.Write(data)
		return toNative(err, s.closed())
	})
}

// Release implements dbms.Output.
func (b *lobOutput) Release() {
	b.GenericOutput.Release()
	b.oid = 0
	b.valid = false
}
