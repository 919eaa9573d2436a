package db

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 mockDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	return NewServiceFromDB(gdb, "postgres", logger.NewNop()), mock
}

func TestAddForeignKeyCreatesMissingConstraint(t *testing.T) {
	svc, mock := newMockService(t)
	fk := foreignKeys[0]

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pg_constraint WHERE conname = `).
		WithArgs(fk.name).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`ALTER TABLE "user_preference" ADD CONSTRAINT "fk_user_preference_user_id"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, svc.addForeignKey(fk))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddForeignKeySkipsExistingConstraint(t *testing.T) {
	svc, mock := newMockService(t)
	fk := foreignKeys[1]

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pg_constraint WHERE conname = `).
		WithArgs(fk.name).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, svc.addForeignKey(fk))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForeignKeysReferenceMigratedTables(t *testing.T) {
	tables := map[string]bool{}
	for _, m := range Models() {
		if tn, ok := m.(interface{ TableName() string }); ok {
			tables[tn.TableName()] = true
		}
	}
	for _, fk := range foreignKeys {
		assert.True(t, tables[fk.table], fk.name)
		assert.True(t, tables[fk.refTable], fk.name)
	}
}
