package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/google/uuid"
	"github.com/tuannm99/novarel/internal/relation"
	"github.com/tuannm99/novarel/internal/storage"
	"github.com/tuannm99/novarel/internal/tuple"
)

var (
	ErrDatabaseClosed = errors.New("novarel: database is closed")
	ErrTxActive       = errors.New("novarel: transaction already active")
	ErrNoTx           = errors.New("novarel: no active transaction")
	ErrNoRelvar       = errors.New("novarel: no such relvar")
	ErrReserved       = errors.New("novarel: name is reserved")
)

const (
	DefaultSnapshotKey = "novarel.snap"
	DefaultScriptKey   = "novarel.yaml"
)

type Options struct {
	// Store is used as given and left open by Close.
	Store storage.Store
	// Storage builds a store when Store is nil. The zero value means memory.
	Storage storage.Options

	SnapshotKey string
	// ScriptKey names the YAML companion. "-" disables it.
	ScriptKey string
}

// ViewFunc computes a named view over the database as it is when looked up.
type ViewFunc func(db *Database) (*relation.Relation, error)

// frame holds relvars assigned since the frame below it. dropped hides
// names that live in lower frames.
type frame struct {
	relvars map[string]*relation.Relation
	dropped map[string]bool
}

func newFrame() *frame {
	return &frame{relvars: map[string]*relation.Relation{}, dropped: map[string]bool{}}
}

func (f *frame) copy() *frame {
	return &frame{relvars: maps.Clone(f.relvars), dropped: maps.Clone(f.dropped)}
}

var _ relation.Resolver = (*Database)(nil)

// Database is a namespace of relvars with one level of transaction. Frame 0
// is the committed state. It is not safe for concurrent use.
type Database struct {
	store     storage.Store
	ownsStore bool
	snapKey   string
	scriptKey string

	frames  []*frame
	views   map[string]ViewFunc
	catalog map[string]*relation.Relation
	txID    string
	closed  bool
}

// Open loads the committed state from the store, or starts empty when the
// store holds no snapshot.
func Open(ctx context.Context, opts Options) (*Database, error) {
	db := &Database{
		store:     opts.Store,
		snapKey:   opts.SnapshotKey,
		scriptKey: opts.ScriptKey,
		frames:    []*frame{newFrame()},
		views:     map[string]ViewFunc{},
	}
	if db.snapKey == "" {
		db.snapKey = DefaultSnapshotKey
	}
	if db.scriptKey == "" {
		db.scriptKey = DefaultScriptKey
	}
	if db.store == nil {
		so := opts.Storage
		if so.Backend == 0 {
			so.Backend = storage.Memory
		}
		s, err := storage.New(so)
		if err != nil {
			return nil, fmt.Errorf("engine: open store: %w", err)
		}
		db.store, db.ownsStore = s, true
	}
	db.catalog = db.catalogViews()

	if err := db.load(ctx); err != nil {
		if db.ownsStore {
			_ = db.store.Close()
		}
		return nil, err
	}
	slog.Info("engine: opened", "relvars", len(db.frames[0].relvars), "snapshot", db.snapKey)
	return db, nil
}

func (db *Database) top() *frame { return db.frames[len(db.frames)-1] }

func (db *Database) usable() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	return nil
}

func (db *Database) reserved(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrReserved)
	}
	if _, ok := db.catalog[name]; ok {
		return fmt.Errorf("%w: %s is a catalog view", ErrReserved, name)
	}
	return nil
}

// lookup finds a stored relvar, searching from the top frame down.
func (db *Database) lookup(name string) (*relation.Relation, int, error) {
	for i := len(db.frames) - 1; i >= 0; i-- {
		f := db.frames[i]
		if f.dropped[name] {
			break
		}
		if r, ok := f.relvars[name]; ok {
			return r, i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrNoRelvar, name)
}

// Get returns a relvar, a view evaluated now, or a catalog view. Inside a
// transaction a relvar is first copied into the transaction frame, so
// writes through the result are undone by Rollback.
func (db *Database) Get(name string) (*relation.Relation, error) {
	if err := db.usable(); err != nil {
		return nil, err
	}
	_, isCatalog := db.catalog[name]
	_, isView := db.views[name]
	if db.InTx() && !isCatalog && !isView {
		return db.writable(name)
	}
	return db.read(name)
}

// Relvar resolves foreign key references. It never copies.
func (db *Database) Relvar(name string) (*relation.Relation, error) {
	if err := db.usable(); err != nil {
		return nil, err
	}
	return db.read(name)
}

func (db *Database) read(name string) (*relation.Relation, error) {
	if r, ok := db.catalog[name]; ok {
		return r, nil
	}
	if fn, ok := db.views[name]; ok {
		r, err := fn(db)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", name, err)
		}
		return r, nil
	}
	r, _, err := db.lookup(name)
	return r, err
}

func (db *Database) exists(name string) bool {
	if _, ok := db.catalog[name]; ok {
		return true
	}
	if _, ok := db.views[name]; ok {
		return true
	}
	_, _, err := db.lookup(name)
	return err == nil
}

// Names lists relvars and views, without the catalog.
func (db *Database) Names() []string {
	seen := map[string]bool{}
	for _, n := range db.relvarNames() {
		seen[n] = true
	}
	for n := range db.views {
		seen[n] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (db *Database) relvarNames() []string {
	seen := map[string]bool{}
	for i := len(db.frames) - 1; i >= 0; i-- {
		f := db.frames[i]
		for n := range f.relvars {
			if _, done := seen[n]; !done {
				seen[n] = true
			}
		}
		for n := range f.dropped {
			if _, done := seen[n]; !done {
				seen[n] = false
			}
		}
	}
	var out []string
	for n, live := range seen {
		if live {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// NewRelation builds a relation whose constraints resolve against db. It is
// bound when passed to Define.
func (db *Database) NewRelation(heading []string, rows [][]any, opts ...relation.Option) (*relation.Relation, error) {
	opts = append(opts, relation.Deferred(), relation.WithResolver(db))
	return relation.New(heading, rows, opts...)
}

// Define assigns a copy of r to name in the top frame, binds it against db
// and checks it. A deferred relation whose foreign keys name relvars that
// do not exist yet stays unbound until they are defined; each Define binds
// and checks the relvars it completes.
func (db *Database) Define(name string, r *relation.Relation) error {
	if err := db.usable(); err != nil {
		return err
	}
	if err := db.reserved(name); err != nil {
		return err
	}
	if _, ok := db.views[name]; ok {
		return fmt.Errorf("%w: %s is a view", ErrReserved, name)
	}

	saved := db.top().copy()

	nr := r.Clone()
	nr.SetName(name)
	top := db.top()
	top.relvars[name] = nr
	delete(top.dropped, name)
	db.refreshGuards()

	err := db.bind(nr)
	if err == nil {
		err = db.bindPending()
	}
	if err != nil {
		db.frames[len(db.frames)-1] = saved
		db.refreshGuards()
		return fmt.Errorf("define %s: %w", name, err)
	}
	slog.Debug("engine: define", "relvar", name, "heading", nr.Heading(), "deferred", nr.IsDeferred(), "tx", db.txID)
	return nil
}

// bind binds r against db and checks it. A deferred r that references a
// missing relvar is left as is.
func (db *Database) bind(r *relation.Relation) error {
	if r.IsDeferred() {
		if missing := db.unresolved(r); len(missing) > 0 {
			slog.Debug("engine: binding postponed", "relvar", r.Name(), "missing", missing)
			return nil
		}
	}
	if err := r.Rebind(db); err != nil {
		return err
	}
	return r.CheckConstraints()
}

// bindPending binds every postponed relvar whose references now resolve.
// Each one is copied into the top frame first.
func (db *Database) bindPending() error {
	for _, name := range db.relvarNames() {
		r, _, _ := db.lookup(name)
		if !r.IsDeferred() || len(db.unresolved(r)) > 0 {
			continue
		}
		c := r.Clone()
		db.top().relvars[name] = c
		db.refreshGuards()
		if err := db.bind(c); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}

// unresolved lists the foreign key targets of r that name nothing in db.
func (db *Database) unresolved(r *relation.Relation) []string {
	var out []string
	for _, c := range r.Constraints() {
		if c.Kind() == relation.KindForeignKey && !db.exists(c.Ref()) {
			out = append(out, c.Ref())
		}
	}
	sort.Strings(out)
	return out
}

// DefineView registers a view. Views are shared by every frame and never
// persisted.
func (db *Database) DefineView(name string, fn ViewFunc) error {
	if err := db.usable(); err != nil {
		return err
	}
	if err := db.reserved(name); err != nil {
		return err
	}
	if _, _, err := db.lookup(name); err == nil {
		return fmt.Errorf("%w: %s is a relvar", ErrReserved, name)
	}
	if _, err := fn(db); err != nil {
		return fmt.Errorf("view %s: %w", name, err)
	}
	db.views[name] = fn
	slog.Debug("engine: define view", "view", name)
	return nil
}

// Drop removes a relvar or view. A relvar that other relvars reference
// cannot be dropped.
func (db *Database) Drop(name string) error {
	if err := db.usable(); err != nil {
		return err
	}
	if err := db.reserved(name); err != nil {
		return err
	}
	if _, ok := db.views[name]; ok {
		delete(db.views, name)
		return nil
	}
	if _, _, err := db.lookup(name); err != nil {
		return err
	}
	for _, other := range db.relvarNames() {
		if other == name {
			continue
		}
		r, _, _ := db.lookup(other)
		for cname, c := range r.Constraints() {
			if c.Kind() == relation.KindForeignKey && c.Ref() == name {
				return fmt.Errorf("%w: %s is referenced by %s", relation.ErrInvalidOperation, name, constraintName(other, cname))
			}
		}
	}

	top := db.top()
	delete(top.relvars, name)
	if len(db.frames) > 1 {
		top.dropped[name] = true
	}
	db.refreshGuards()
	slog.Debug("engine: drop", "relvar", name, "tx", db.txID)
	return nil
}

// writable returns the top frame's copy of name, copying it up from a
// lower frame on first write.
func (db *Database) writable(name string) (*relation.Relation, error) {
	if err := db.usable(); err != nil {
		return nil, err
	}
	if _, ok := db.catalog[name]; ok {
		return nil, fmt.Errorf("%w: %s is read-only", ErrReserved, name)
	}
	if _, ok := db.views[name]; ok {
		return nil, fmt.Errorf("%w: view %s is read-only", relation.ErrInvalidOperation, name)
	}
	r, level, err := db.lookup(name)
	if err != nil {
		return nil, err
	}
	if level == len(db.frames)-1 {
		return r, nil
	}
	c := r.Clone()
	db.top().relvars[name] = c
	return c, nil
}

func (db *Database) Insert(name string, ts ...tuple.Tuple) (int, error) {
	r, err := db.writable(name)
	if err != nil {
		return 0, err
	}
	return r.Insert(ts...)
}

func (db *Database) Delete(name string, pred func(tuple.Tuple) bool) (int, error) {
	r, err := db.writable(name)
	if err != nil {
		return 0, err
	}
	return r.Delete(pred)
}

func (db *Database) DeleteTuples(name string, ts ...tuple.Tuple) (int, error) {
	r, err := db.writable(name)
	if err != nil {
		return 0, err
	}
	return r.DeleteTuples(ts...)
}

func (db *Database) Update(name string, pred func(tuple.Tuple) bool, fn func(tuple.Tuple) map[string]any) (int, error) {
	r, err := db.writable(name)
	if err != nil {
		return 0, err
	}
	return r.Update(pred, fn)
}

func (db *Database) InTx() bool { return len(db.frames) > 1 }

// TxID is empty outside a transaction.
func (db *Database) TxID() string { return db.txID }

func (db *Database) Begin() error {
	if err := db.usable(); err != nil {
		return err
	}
	if db.InTx() {
		return fmt.Errorf("%w: %s", ErrTxActive, db.txID)
	}
	db.frames = append(db.frames, newFrame())
	db.txID = uuid.NewString()
	slog.Info("engine: begin", "tx", db.txID)
	return nil
}

// Commit folds the transaction frame into the committed state and persists
// it. The merge stands even if persisting fails.
func (db *Database) Commit(ctx context.Context) error {
	if err := db.usable(); err != nil {
		return err
	}
	if !db.InTx() {
		return ErrNoTx
	}
	tx := db.txID
	top := db.top()
	db.frames = db.frames[:len(db.frames)-1]
	base := db.frames[0]
	for n := range top.dropped {
		delete(base.relvars, n)
	}
	for n, r := range top.relvars {
		base.relvars[n] = r
	}
	db.txID = ""
	db.refreshGuards()
	slog.Info("engine: commit", "tx", tx, "changed", len(top.relvars), "dropped", len(top.dropped))

	if err := db.Save(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", tx, err)
	}
	return nil
}

func (db *Database) Rollback() error {
	if err := db.usable(); err != nil {
		return err
	}
	if !db.InTx() {
		return ErrNoTx
	}
	slog.Info("engine: rollback", "tx", db.txID)
	db.frames = db.frames[:len(db.frames)-1]
	db.txID = ""
	db.refreshGuards()
	return nil
}

// Close rolls back an open transaction, flushes the committed state and
// closes a store that Open created.
func (db *Database) Close(ctx context.Context) error {
	if db.closed {
		return nil
	}
	if db.InTx() {
		slog.Warn("engine: close with open transaction, rolling back", "tx", db.txID)
		_ = db.Rollback()
	}
	err := db.Save(ctx)
	db.closed = true
	if db.ownsStore {
		if cerr := db.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// refreshGuards reinstalls, on every referenced relvar, a guard per foreign
// key that points at it.
func (db *Database) refreshGuards() {
	for _, f := range db.frames {
		for _, r := range f.relvars {
			r.ClearGuards()
		}
	}
	for _, name := range db.relvarNames() {
		r, _, _ := db.lookup(name)
		if r.IsComputed() {
			continue
		}
		for cname, c := range r.Constraints() {
			if c.Kind() != relation.KindForeignKey {
				continue
			}
			ref, _, err := db.lookup(c.Ref())
			if err != nil || ref.IsComputed() {
				continue
			}
			referrer := name
			ref.SetGuard(name+"_"+cname+"_ref", relation.GuardForeignKey(c, func() (*relation.Relation, error) {
				r, _, err := db.lookup(referrer)
				return r, err
			}))
		}
	}
}
