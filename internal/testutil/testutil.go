// Package testutil holds fixtures shared by service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/devforge-org/devforge-backend/internal/db"
	"github.com/devforge-org/devforge-backend/internal/eventdata"
	"github.com/devforge-org/devforge-backend/internal/requestdata"
	"github.com/devforge-org/devforge-backend/internal/types"
)

// NewSQLite opens a private in-memory database with every table migrated.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(db.Models()...))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return gdb
}

// CreateUser inserts a user row with the given login name.
func CreateUser(t *testing.T, gdb *gorm.DB, username string) *types.User {
	t.Helper()
	user := &types.User{Username: username, DisplayName: username}
	require.NoError(t, gdb.Create(user).Error)
	return user
}

// AsUser returns a context authenticated as user.
func AsUser(ctx context.Context, user *types.User) context.Context {
	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: uuid.NewString(),
	})
}

// Emitter records emitted events.
type Emitter struct {
	mu     sync.Mutex
	Events []eventdata.Event
}

func (e *Emitter) Emit(_ context.Context, events ...eventdata.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, events...)
}

// Types lists the recorded event types in order.
func (e *Emitter) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.Events))
	for _, ev := range e.Events {
		out = append(out, ev.Type)
	}
	return out
}
