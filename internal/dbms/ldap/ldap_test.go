package ldap_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/ldap"
)

const findPerson = "ou=people,dc=example,dc=org?cn,mail?one?(uid={0})"

// directory is an in-memory Client keyed by uid.
type directory struct {
	mu       sync.Mutex
	people   map[string]map[string][]string
	failNext error
	closing  bool
	modifies []*goldap.ModifyRequest
}

func (d *directory) take() error {
	err := d.failNext
	d.failNext = nil
	if errors.Is(err, errSevered) {
		d.closing = true
	}
	return err
}

var errSevered = errors.New("connection reset")

func (d *directory) Search(req *goldap.SearchRequest) (*goldap.SearchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.take(); err != nil {
		return nil, err
	}
	res := &goldap.SearchResult{}
	for uid, attrs := range d.people {
		if req.Filter == "(uid="+uid+")" {
			res.Entries = append(res.Entries, goldap.NewEntry("uid="+uid+","+req.BaseDN, attrs))
		}
	}
	return res, nil
}

func (d *directory) Modify(req *goldap.ModifyRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.take(); err != nil {
		return err
	}
	d.modifies = append(d.modifies, req)
	return nil
}

func (d *directory) Add(*goldap.AddRequest) error { return nil }
func (d *directory) Del(*goldap.DelRequest) error { return nil }

func (d *directory) IsClosing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closing
}

func (d *directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closing = true
	return nil
}

func (d *directory) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = err
}

func openDirectory(t *testing.T) (*dbms.Database, *directory, *int) {
	t.Helper()
	dir := &directory{people: map[string]map[string][]string{
		"alice": {"cn": {"Alice"}, "mail": {"alice@example.org", "a@example.org"}},
		"bob":   {"cn": {"Bob"}},
	}}
	dials := 0
	drv := ldap.New(ldap.Config{URL: "ldap://directory.invalid"}, ldap.WithDialer(func(ldap.Config) (ldap.Client, error) {
		dials++
		dir.mu.Lock()
		dir.closing = false
		dir.mu.Unlock()
		return dir, nil
	}))

	cfg := dbms.DefaultConfig("directory")
	cfg.RecoveryInterval = 0
	db, err := dbms.New(cfg, drv)
	require.NoError(t, err)
	require.NoError(t, db.Open(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RegisterStatement("find-person", findPerson, dbms.ActionIgnore))
	require.NoError(t, db.RegisterStatement("set-mail", "modify:uid={0},ou=people,dc=example,dc=org?mail={1}", dbms.ActionIgnore))
	return db, dir, &dials
}

func find(t *testing.T, db *dbms.Database, uid string) (rc dbms.ResultCode, cn, mail *datatype.String, err error) {
	t.Helper()
	ctx := context.Background()
	gs, err := db.AcquireStatement(ctx, "find-person")
	require.NoError(t, err)
	defer gs.Release()

	key := datatype.NewString("uid", 64, datatype.CanNotBeNull)
	require.NoError(t, key.Set(uid))
	cn = datatype.NewString("cn", 64, datatype.CanBeNull)
	mail = datatype.NewString("mail", 128, datatype.CanBeNull)
	require.NoError(t, gs.BindInput(key))
	require.NoError(t, gs.BindOutput(cn))
	require.NoError(t, gs.BindOutput(mail))

	rc, err = gs.Execute(ctx)
	if err == nil && rc.Successful() {
		ok, ferr := gs.Fetch(ctx)
		require.NoError(t, ferr)
		require.True(t, ok)
	}
	return rc, cn, mail, err
}

func TestSearchFindsEntry(t *testing.T) {
	db, _, _ := openDirectory(t)

	rc, cn, mail, err := find(t, db, "alice")
	require.NoError(t, err)
	require.True(t, rc.Successful())
	assert.Equal(t, "Alice", cn.String())
	assert.Equal(t, "alice@example.org", mail.String())

	rc, cn, mail, err = find(t, db, "bob")
	require.NoError(t, err)
	require.True(t, rc.Successful())
	assert.Equal(t, "Bob", cn.String())
	assert.True(t, mail.IsNull())
}

func TestSearchMissingIsNotFound(t *testing.T) {
	db, _, _ := openDirectory(t)

	rc, _, _, err := find(t, db, "carol")
	require.NoError(t, err)
	assert.True(t, rc.NotFound())
	assert.Equal(t, ldap.CodeNoSuchObject, rc.Code)
}

func TestBusyIsLocked(t *testing.T) {
	db, dir, _ := openDirectory(t)
	dir.fail(goldap.NewError(goldap.LDAPResultBusy, errors.New("busy")))

	rc, _, _, err := find(t, db, "alice")
	require.NoError(t, err)
	assert.True(t, rc.Locked())
}

func TestNetworkErrorRecovers(t *testing.T) {
	db, dir, dials := openDirectory(t)
	require.Equal(t, 1, *dials)
	dir.fail(goldap.NewError(goldap.ErrorNetwork, errSevered))

	_, _, _, err := find(t, db, "alice")
	require.ErrorIs(t, err, dbms.ErrLostConnection)
	assert.Equal(t, 2, *dials)
	assert.Equal(t, dbms.StateOpen, db.Connections()[0].State())

	rc, cn, _, err := find(t, db, "alice")
	require.NoError(t, err)
	require.True(t, rc.Successful())
	assert.Equal(t, "Alice", cn.String())
}

func TestModifyWithNullDeletes(t *testing.T) {
	ctx := context.Background()
	db, dir, _ := openDirectory(t)

	gs, err := db.AcquireStatement(ctx, "set-mail")
	require.NoError(t, err)
	defer gs.Release()
	uid := datatype.NewString("uid", 64, datatype.CanNotBeNull)
	require.NoError(t, uid.Set("bob"))
	mail := datatype.NewString("mail", 128, datatype.CanBeNull)
	require.NoError(t, gs.BindInput(uid))
	require.NoError(t, gs.BindInput(mail))

	rc, err := gs.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, rc.Successful())

	require.Len(t, dir.modifies, 1)
	assert.Equal(t, "uid=bob,ou=people,dc=example,dc=org", dir.modifies[0].DN)
	assert.Empty(t, dir.modifies[0].Changes[0].Modification.Vals)
}

func TestNoTransactions(t *testing.T) {
	ctx := context.Background()
	db, _, _ := openDirectory(t)
	gc, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	defer gc.Release()
	require.NoError(t, gc.Begin(ctx))
	require.NoError(t, gc.Commit(ctx))
}

func TestInterpreter(t *testing.T) {
	assert.Equal(t, dbms.OutcomeSuccessful, ldap.Interpreter.Classify(ldap.CodeSuccess))
	assert.Equal(t, dbms.OutcomeNotFound, ldap.Interpreter.Classify(ldap.CodeNoSuchObject))
	assert.Equal(t, dbms.OutcomeLocked, ldap.Interpreter.Classify(ldap.CodeBusy))
	assert.Equal(t, dbms.OutcomeLostConnection, ldap.Interpreter.Classify(ldap.CodeUnavailable))
	assert.Equal(t, dbms.OutcomeLostConnection, ldap.Interpreter.Classify(ldap.CodeServerDown))
	assert.Equal(t, dbms.OutcomeLostConnection, ldap.Interpreter.Classify(ldap.CodeNetwork))
	assert.Equal(t, dbms.OutcomeOther, ldap.Interpreter.Classify(int(goldap.LDAPResultInsufficientAccessRights)))
}
