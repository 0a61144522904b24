package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"gorm.io/gorm"
)

// ErrMissingFilter guards against unscoped updates and deletes.
var ErrMissingFilter = errors.New("update and delete require at least one filter")

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func changeChannel(table string) string { return "realtime:" + table }

type tables struct {
	p *Platform
}

func (t *tables) Select(ctx context.Context, q backend.Query, dest any) (err error) {
	ctx, span := observability.StartBackendSpan(ctx, "tables", "select")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackBackendCall("tables", "select")()

	row, err := t.model(q.Table)
	if err != nil {
		return err
	}
	db, err := applyFilters(t.p.db.WithContext(ctx).Model(row), q.Filters)
	if err != nil {
		return err
	}
	if q.OrderBy != "" {
		if !identPattern.MatchString(q.OrderBy) {
			return fmt.Errorf("invalid order column %q", q.OrderBy)
		}
		dir := " ASC"
		if q.Desc {
			dir = " DESC"
		}
		db = db.Order(q.OrderBy + dir)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if err := db.Find(dest).Error; err != nil {
		observability.BackendCallErrors.WithLabelValues("tables", string(models.Classify(err))).Inc()
		return fmt.Errorf("database error selecting from %s: %w", q.Table, err)
	}
	return nil
}

func (t *tables) Count(ctx context.Context, table string, filters ...backend.Filter) (int64, error) {
	defer observability.TrackBackendCall("tables", "count")()

	row, err := t.model(table)
	if err != nil {
		return 0, err
	}
	db, err := applyFilters(t.p.db.WithContext(ctx).Model(row), filters)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("database error counting %s: %w", table, err)
	}
	return n, nil
}

func (t *tables) Insert(ctx context.Context, table string, row any) (err error) {
	ctx, span := observability.StartBackendSpan(ctx, "tables", "insert")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackBackendCall("tables", "insert")()

	if _, err := t.model(table); err != nil {
		return err
	}
	if err := t.p.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		observability.BackendCallErrors.WithLabelValues("tables", string(models.Classify(err))).Inc()
		return fmt.Errorf("database error inserting into %s: %w", table, err)
	}
	t.p.publishChange(ctx, table, backend.ChangeInsert, row)
	return nil
}

func (t *tables) Update(ctx context.Context, table string, values map[string]any, filters ...backend.Filter) error {
	defer observability.TrackBackendCall("tables", "update")()

	if len(filters) == 0 {
		return ErrMissingFilter
	}
	row, err := t.model(table)
	if err != nil {
		return err
	}
	for col := range values {
		if !identPattern.MatchString(col) {
			return fmt.Errorf("invalid column %q", col)
		}
	}
	db, err := applyFilters(t.p.db.WithContext(ctx).Model(row), filters)
	if err != nil {
		return err
	}
	if err := db.Updates(values).Error; err != nil {
		return fmt.Errorf("database error updating %s: %w", table, err)
	}

	changed, err := t.snapshot(ctx, table, filters)
	if err != nil {
		platformLog.Warn(ctx, "could not read updated rows for change feed", map[string]any{"table": table, "error": err.Error()})
		return nil
	}
	for _, rec := range changed {
		t.p.publishChange(ctx, table, backend.ChangeUpdate, rec)
	}
	return nil
}

func (t *tables) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	defer observability.TrackBackendCall("tables", "delete")()

	if len(filters) == 0 {
		return ErrMissingFilter
	}
	row, err := t.model(table)
	if err != nil {
		return err
	}
	removed, err := t.snapshot(ctx, table, filters)
	if err != nil {
		return fmt.Errorf("database error reading %s: %w", table, err)
	}
	db, err := applyFilters(t.p.db.WithContext(ctx), filters)
	if err != nil {
		return err
	}
	if err := db.Delete(row).Error; err != nil {
		return fmt.Errorf("database error deleting from %s: %w", table, err)
	}
	for _, rec := range removed {
		t.p.publishChange(ctx, table, backend.ChangeDelete, rec)
	}
	return nil
}

func (t *tables) model(table string) (any, error) {
	row, ok := models.NewRow(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownTable, table)
	}
	return row, nil
}

func (t *tables) snapshot(ctx context.Context, table string, filters []backend.Filter) ([]map[string]any, error) {
	db, err := applyFilters(t.p.db.WithContext(ctx).Table(table), filters)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyFilters(db *gorm.DB, filters []backend.Filter) (*gorm.DB, error) {
	for _, f := range filters {
		if !identPattern.MatchString(f.Column) {
			return nil, fmt.Errorf("invalid filter column %q", f.Column)
		}
		db = db.Where(f.Column+" = ?", f.Value)
	}
	return db, nil
}

func (p *Platform) publishChange(ctx context.Context, table string, typ backend.ChangeType, record any) {
	rec, err := json.Marshal(record)
	if err != nil {
		platformLog.Error(ctx, "failed to encode change record", err, map[string]any{"table": table})
		return
	}
	payload, err := json.Marshal(backend.ChangeEvent{Table: table, Type: typ, Record: rec, At: time.Now()})
	if err != nil {
		return
	}
	if err := p.broker.Publish(ctx, changeChannel(table), payload); err != nil {
		platformLog.Error(ctx, "failed to publish change", err, map[string]any{"table": table, "type": string(typ)})
	}
}
