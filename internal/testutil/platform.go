// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/backend/platform"
	"github.com/brayobiz/campus-hub-sub000/internal/config"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SigningKey is a key long enough to pass config validation.
const SigningKey = "test-signing-key-that-is-long-enough-123"

// NewDB opens a private in-memory SQLite database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewPlatform builds a migrated platform on SQLite with an in-memory broker
// and local storage under a temp dir.
func NewPlatform(t *testing.T, mutate ...func(*platform.Options)) *platform.Platform {
	t.Helper()
	storage, err := platform.NewLocalStorage(t.TempDir(), "http://localhost:8375/storage")
	require.NoError(t, err)
	opts := platform.Options{
		DB:         NewDB(t),
		SigningKey: SigningKey,
		Storage:    storage,
		ConfirmURL: "http://localhost:8375",
		Reconnect: config.ReconnectPolicy{
			MaxRetries:      3,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
		},
	}
	for _, m := range mutate {
		m(&opts)
	}
	p, err := platform.New(opts)
	require.NoError(t, err)
	require.NoError(t, p.Migrate())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// SeedCampus inserts a campus row.
func SeedCampus(t *testing.T, tables backend.Tables, name, short string) models.Campus {
	t.Helper()
	c := models.Campus{Name: name, ShortName: short, Location: "Nairobi"}
	require.NoError(t, tables.Insert(context.Background(), models.TableCampuses, &c))
	return c
}

// SignUp registers and signs in a user on client, returning the session.
func SignUp(t *testing.T, client backend.Client, email, fullName string) *backend.Session {
	t.Helper()
	res, err := client.Auth().SignUp(context.Background(), backend.SignUpInput{
		Email:    email,
		Password: "Str0ngPass!",
		Metadata: map[string]any{"full_name": fullName},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	return res.Session
}

// PNG returns an encoded w x h image.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// FlakyTables wraps Tables and fails the listed operations while Failing is set.
type FlakyTables struct {
	backend.Tables
	mu      sync.Mutex
	failing map[string]error
	calls   map[string]int
}

// NewFlakyTables wraps inner.
func NewFlakyTables(inner backend.Tables) *FlakyTables {
	return &FlakyTables{Tables: inner, failing: map[string]error{}, calls: map[string]int{}}
}

// Fail makes op ("select", "count", "insert", "update", "delete") return err; nil heals it.
func (f *FlakyTables) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, op)
		return
	}
	f.failing[op] = err
}

// Calls reports how many times op was invoked.
func (f *FlakyTables) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FlakyTables) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failing[op]
}

func (f *FlakyTables) Select(ctx context.Context, q backend.Query, dest any) error {
	if err := f.check("select"); err != nil {
		return err
	}
	return f.Tables.Select(ctx, q, dest)
}

func (f *FlakyTables) Count(ctx context.Context, table string, filters ...backend.Filter) (int64, error) {
	if err := f.check("count"); err != nil {
		return 0, err
	}
	return f.Tables.Count(ctx, table, filters...)
}

func (f *FlakyTables) Insert(ctx context.Context, table string, row any) error {
	if err := f.check("insert"); err != nil {
		return err
	}
	return f.Tables.Insert(ctx, table, row)
}

func (f *FlakyTables) Update(ctx context.Context, table string, values map[string]any, filters ...backend.Filter) error {
	if err := f.check("update"); err != nil {
		return err
	}
	return f.Tables.Update(ctx, table, values, filters...)
}

func (f *FlakyTables) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	if err := f.check("delete"); err != nil {
		return err
	}
	return f.Tables.Delete(ctx, table, filters...)
}

// Client overrides the Tables surface of an existing client.
type Client struct {
	backend.Client
	TablesOverride backend.Tables
}

func (c *Client) Tables() backend.Tables {
	if c.TablesOverride != nil {
		return c.TablesOverride
	}
	return c.Client.Tables()
}
