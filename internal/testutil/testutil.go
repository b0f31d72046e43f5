// Package testutil wires in-memory infrastructure for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/match-relay/internal/app"
	"github.com/oggyb/match-relay/internal/cache"
	"github.com/oggyb/match-relay/internal/config"
	"github.com/oggyb/match-relay/internal/db"
	"github.com/oggyb/match-relay/internal/logger"
)

// NewDB opens a private in-memory SQLite database with the schema migrated.
// A single connection keeps every statement on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        db.Now,
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// NewFileDB opens a SQLite database file under t.TempDir() with a real
// connection pool, for tests that exercise concurrent transactions.
// Transactions take the write lock up front and wait out contention.
func NewFileDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "match.db") + "?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate"
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        db.Now,
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// NewRedis starts a miniredis and returns a cache bound to it.
func NewRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

// Env bundles an AppContext with handles tests poke at directly.
type Env struct {
	App       *app.AppContext
	Redis     *miniredis.Miniredis
	Messenger *FakeMessenger
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	return NewEnvWithDB(t, NewDB(t))
}

// NewEnvWithDB is NewEnv over a caller-supplied database.
func NewEnvWithDB(t *testing.T, database *gorm.DB) *Env {
	t.Helper()

	cfg := &config.Config{}
	cfg.Intent.TTL = 10 * time.Minute
	cfg.Admin.UserID = 999

	rc, mr := NewRedis(t)
	fm := NewFakeMessenger()
	return &Env{
		App:       app.New(cfg, database, rc, logger.Discard(), fm),
		Redis:     mr,
		Messenger: fm,
	}
}

// CreateUsers inserts profiles; zero Preference becomes Both.
func (e *Env) CreateUsers(t *testing.T, users ...db.User) {
	t.Helper()
	for i := range users {
		if users[i].Preference == "" {
			users[i].Preference = db.PreferenceBoth
		}
	}
	require.NoError(t, e.App.DB.Create(&users).Error)
}

// Like records a raw swipe, bypassing the service.
func (e *Env) Like(t *testing.T, liker, liked uint64) {
	t.Helper()
	require.NoError(t, e.App.DB.Create(&db.Swipe{LikerID: liker, LikedID: liked}).Error)
}

// ActiveRows returns every active_chats row as user → partner.
func (e *Env) ActiveRows(t *testing.T) map[uint64]uint64 {
	t.Helper()
	var rows []db.ActiveChat
	require.NoError(t, e.App.DB.Find(&rows).Error)
	out := make(map[uint64]uint64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.PartnerID
	}
	return out
}

// Requests returns every chat request, oldest first.
func (e *Env) Requests(t *testing.T) []db.ChatRequest {
	t.Helper()
	var reqs []db.ChatRequest
	require.NoError(t, e.App.DB.Order("id").Find(&reqs).Error)
	return reqs
}

// Sent is one message captured by FakeMessenger.
type Sent struct {
	UserID   uint64
	Text     string
	PhotoRef string
}

// FakeMessenger records outbound messages and fails for unreachable users.
type FakeMessenger struct {
	mu          sync.Mutex
	sent        []Sent
	unreachable map[uint64]bool
}

func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{unreachable: map[uint64]bool{}}
}

// Unreachable makes every send to the given users fail.
func (f *FakeMessenger) Unreachable(ids ...uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.unreachable[id] = true
	}
}

func (f *FakeMessenger) SendText(_ context.Context, userID uint64, text string) error {
	return f.record(Sent{UserID: userID, Text: text})
}

func (f *FakeMessenger) SendPhoto(_ context.Context, userID uint64, photoRef, caption string) error {
	return f.record(Sent{UserID: userID, Text: caption, PhotoRef: photoRef})
}

func (f *FakeMessenger) record(s Sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable[s.UserID] {
		return fmt.Errorf("user %d unreachable", s.UserID)
	}
	f.sent = append(f.sent, s)
	return nil
}

// To returns the messages delivered to userID, in order.
func (f *FakeMessenger) To(userID uint64) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// TextsTo returns only the text bodies delivered to userID.
func (f *FakeMessenger) TextsTo(userID uint64) []string {
	var out []string
	for _, s := range f.To(userID) {
		out = append(out, s.Text)
	}
	return out
}

// Reset forgets recorded messages.
func (f *FakeMessenger) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}
