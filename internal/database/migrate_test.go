package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	tests := []struct {
		name    string
		applied bool
	}{
		{"fresh database", false},
		{"already applied", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer mockDB.Close()
			db := sqlx.NewDb(mockDB, "sqlmock")
			log, hook := test.NewNullLogger()

			mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS schema_migrations`)).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`)).
				WithArgs("migrations/001_trips_bookings.sql").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.applied))
			if !tt.applied {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS trips`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations (version) VALUES ($1)`)).
					WithArgs("migrations/001_trips_bookings.sql").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			}

			require.NoError(t, Migrate(context.Background(), db, log))
			assert.NoError(t, mock.ExpectationsWereMet())
			if tt.applied {
				assert.Empty(t, hook.AllEntries())
			} else {
				require.Len(t, hook.AllEntries(), 1)
				assert.Equal(t, "applied migration", hook.LastEntry().Message)
			}
		})
	}
}
