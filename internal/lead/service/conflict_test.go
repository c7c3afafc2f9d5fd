package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/lead/domain"
	"github.com/smallbiznis/partnerhub/internal/lead/repository"
	partnerrepo "github.com/smallbiznis/partnerhub/internal/partner/repository"
	"github.com/smallbiznis/partnerhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockService(t *testing.T) (domain.Service, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	node := testutil.Node(t)
	clk := testutil.Clock()
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		Partners: partnerrepo.Provide(),
		Outbox:   events.NewOutbox(node, clk),
	})
	return svc, mock
}

func TestTransitionReportsStaleVersion(t *testing.T) {
	svc, mock := newMockService(t)

	createdAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "partner_id", "client_name", "client_email", "service",
		"service_value", "commission", "commission_rate", "status",
		"commission_paid", "version", "created_at", "updated_at",
	}).AddRow(42, 7, "Jane", "jane@client.test", "Website", 500000, 50000, "10", "qualified", false, 3, createdAt, createdAt)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "partners"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "commission_rate", "version"}).AddRow(7, "active", "10", 1))
	mock.ExpectQuery(`SELECT \* FROM "leads"`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE leads`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{PartnerID: 7, LeadID: 42, Status: "converted"})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
