package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emogotchi/emogotchi-backend/internal/config"
	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

func TestSQLiteDSN(t *testing.T) {
	got := sqliteDSN("app.db")
	if !strings.HasPrefix(got, "app.db?_pragma=journal_mode(WAL)&") || strings.Count(got, "_pragma=") != len(sqlitePragmas) {
		t.Fatalf("dsn = %q", got)
	}
	if got := sqliteDSN("file:x?mode=memory"); !strings.HasPrefix(got, "file:x?mode=memory&_pragma=") {
		t.Fatalf("existing query not kept: %q", got)
	}
}

func TestOpenSQLite_MissingDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "emo.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("OpenSQLite(%q) = %v, %v", bad, db, err)
	}
}

func TestOpenSQLite_PragmasPoolAndSchema(t *testing.T) {
	db, err := Open(config.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "emo.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, want := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + name).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", name, err)
		}
		if strings.ToLower(got) != want {
			t.Fatalf("PRAGMA %s = %q, want %q", name, got, want)
		}
	}
	if n := sqlDB.Stats().MaxOpenConnections; n != sqlitePool.maxOpen {
		t.Fatalf("MaxOpenConnections = %d", n)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range domain.Models() {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("missing table for %T", m)
		}
	}

	now := time.Now().UTC()
	if err := db.Create(&domain.User{UUID: "U1", Nickname: "momo", AnimalLevel: 1, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := db.Create(&domain.DiaryEntry{UUID: "U1", Date: "2025-06-01", Summary: "ok", Emotion: "calm"}).Error; err != nil {
		t.Fatalf("insert diary: %v", err)
	}
	// (uuid, date) is the primary key
	if err := db.Create(&domain.DiaryEntry{UUID: "U1", Date: "2025-06-01", Summary: "dup", Emotion: "calm"}).Error; err == nil {
		t.Fatalf("duplicate diary day should be rejected")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(config.DBConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenPostgres_UnreachableFails(t *testing.T) {
	dsn := "host=127.0.0.1 port=1 user=emo dbname=emo sslmode=disable connect_timeout=1"
	if db, err := OpenPostgres(dsn); err == nil || db != nil {
		t.Fatalf("expected connection error, got db=%v err=%v", db, err)
	}
}

func TestGormLogForwardsToZerolog(t *testing.T) {
	var buf strings.Builder
	restore := captureGlobalLog(&buf)
	defer restore()

	gormLog{}.Printf("slow sql %s ", "SELECT 1")
	if !strings.Contains(buf.String(), `"component":"gorm"`) || !strings.Contains(buf.String(), `"message":"slow sql SELECT 1"`) {
		t.Fatalf("unexpected log: %s", buf.String())
	}
}

func captureGlobalLog(w *strings.Builder) (restore func()) {
	prev := log.Logger
	log.Logger = zerolog.New(w)
	return func() { log.Logger = prev }
}
