package pane

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/jask/flowcanvas/internal/database"
)

// Record is the pane a previous spawn left on screen.
type Record struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}

// Registry persists at most one Record between CLI invocations. There is no
// locking: two concurrent spawns may both create a pane.
type Registry interface {
	Load(ctx context.Context) (Record, bool, error)
	Save(ctx context.Context, r Record) error
	Clear(ctx context.Context) error
}

// FileRegistry keeps the record in a small JSON file. A file holding just a
// pane id, as written by older versions, is read as a tmux record.
type FileRegistry struct {
	Path string
}

func (f FileRegistry) Load(context.Context) (Record, bool, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read pane record: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Record{}, false, nil
	}
	if data[0] != '{' {
		return Record{ID: string(data), Kind: KindTmux}, true, nil
	}
	var r Record
	if err := sonic.ConfigStd.Unmarshal(data, &r); err != nil {
		return Record{}, false, fmt.Errorf("decode pane record: %w", err)
	}
	if r.ID == "" {
		return Record{}, false, nil
	}
	if r.Kind == "" {
		r.Kind = KindTmux
	}
	return r, true, nil
}

// Save replaces the record atomically. Each call writes its own temp file,
// so concurrent spawns never share one; the last rename wins.
func (f FileRegistry) Save(_ context.Context, r Record) error {
	data, err := sonic.ConfigStd.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode pane record: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create pane record dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write pane record: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write pane record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write pane record: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace pane record: %w", err)
	}
	return nil
}

func (f FileRegistry) Clear(context.Context) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

const defaultSlot = "default"

// SQLiteRegistry keeps the record in the pane_records table.
type SQLiteRegistry struct {
	db   *sql.DB
	slot string
}

// OpenSQLiteRegistry migrates and opens the database at path.
func OpenSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate pane registry: %w", err)
	}
	return &SQLiteRegistry{db: db, slot: defaultSlot}, nil
}

func (s *SQLiteRegistry) Load(ctx context.Context) (Record, bool, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		`SELECT pane_id, kind FROM pane_records WHERE slot = ?`, s.slot,
	).Scan(&r.ID, &r.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load pane record: %w", err)
	}
	return r, true, nil
}

func (s *SQLiteRegistry) Save(ctx context.Context, r Record) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pane_records (slot, pane_id, kind, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(slot) DO UPDATE SET pane_id = excluded.pane_id, kind = excluded.kind, updated_at = excluded.updated_at`,
			s.slot, r.ID, string(r.Kind), database.Now(),
		)
		return err
	})
}

func (s *SQLiteRegistry) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pane_records WHERE slot = ?`, s.slot)
	return err
}

func (s *SQLiteRegistry) Close() error { return s.db.Close() }

// RedisRegistry keeps the record as a JSON string under one key.
type RedisRegistry struct {
	client *redis.Client
	key    string
}

// NewRedisRegistry connects to url (redis://...) and checks the connection.
func NewRedisRegistry(ctx context.Context, url, key string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		key = "flowcanvas:pane"
	}
	return &RedisRegistry{client: client, key: key}, nil
}

func (r *RedisRegistry) Load(ctx context.Context) (Record, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load pane record: %w", err)
	}
	var rec Record
	if err := sonic.ConfigStd.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode pane record: %w", err)
	}
	return rec, rec.ID != "", nil
}

func (r *RedisRegistry) Save(ctx context.Context, rec Record) error {
	data, err := sonic.ConfigStd.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save pane record: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *RedisRegistry) Close() error { return r.client.Close() }
