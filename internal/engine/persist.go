package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/novarel/internal/relation"
	"github.com/tuannm99/novarel/internal/snapshot"
	"github.com/tuannm99/novarel/internal/storage"
)

// load rebuilds frame 0 from the snapshot. Relvars are created unbound and
// bound once all of them exist, so foreign keys resolve in any order. One
// saved while its references were missing stays unbound.
func (db *Database) load(ctx context.Context) error {
	data, err := db.store.Load(ctx, db.snapKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: load snapshot: %w", err)
	}
	img, err := snapshot.Decode(data)
	if err != nil {
		return fmt.Errorf("engine: load snapshot: %w", err)
	}

	base := db.frames[0]
	for _, ri := range img.Relvars {
		r, err := ri.Relation(relation.Deferred(), relation.WithResolver(db))
		if err != nil {
			return fmt.Errorf("engine: load %s: %w", ri.Name, err)
		}
		base.relvars[ri.Name] = r
	}
	db.refreshGuards()
	for _, name := range db.relvarNames() {
		if err := db.bind(base.relvars[name]); err != nil {
			return fmt.Errorf("engine: load %s: %w", name, err)
		}
	}
	slog.Debug("engine: snapshot loaded", "relvars", len(img.Relvars), "saved_at", img.SavedAt)
	return nil
}

// Save persists the committed frame. Computed relvars, views and closure
// constraints are left out.
func (db *Database) Save(ctx context.Context) error {
	if err := db.usable(); err != nil {
		return err
	}
	img, skipped, err := snapshot.Capture(db.frames[0].relvars)
	if err != nil {
		return fmt.Errorf("engine: capture: %w", err)
	}
	for _, s := range skipped {
		slog.Warn("engine: constraint not persisted", "constraint", s)
	}
	data, err := snapshot.Encode(img)
	if err != nil {
		return err
	}
	if err := db.store.Save(ctx, db.snapKey, data); err != nil {
		return fmt.Errorf("engine: save snapshot: %w", err)
	}

	if db.scriptKey != "-" {
		var buf bytes.Buffer
		if err := snapshot.WriteScript(&buf, img); err != nil {
			return err
		}
		if err := db.store.Save(ctx, db.scriptKey, buf.Bytes()); err != nil {
			return fmt.Errorf("engine: save script: %w", err)
		}
	}
	slog.Debug("engine: saved", "relvars", len(img.Relvars), "bytes", len(data))
	return nil
}
