package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"emi-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreWithDB(sqlx.NewDb(db, "sqlmock")), mock
}

var bookingColumns = []string{
	"id", "user_id", "package_id", "final_price", "currency", "is_prepaid", "status",
	"is_emi", "total_tenure", "monthly_amount", "emi_total_amount",
	"cancellation_reason", "cancelled_at", "created_at", "updated_at",
}

var installmentColumns = []string{
	"booking_id", "installment_number", "amount", "due_date", "status",
	"paid_at", "payment_id", "transaction_id",
}

func TestGetBookingAssemblesSchedule(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	due := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	paidAt := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM bookings WHERE id = $1")).
		WithArgs("bk_1").
		WillReturnRows(sqlmock.NewRows(bookingColumns).
			AddRow("bk_1", "u1", "pkg_7", int64(10000), "INR", true, models.BookingStatusPending,
				true, 3, int64(3333), int64(10000), nil, nil, now, now))

	mock.ExpectQuery("SELECT \\* FROM installments").
		WithArgs("bk_1").
		WillReturnRows(sqlmock.NewRows(installmentColumns).
			AddRow("bk_1", 1, int64(3333), due, models.InstallmentStatusPaid, &paidAt, "pay_abc", "TXN-1").
			AddRow("bk_1", 2, int64(3333), due.AddDate(0, 1, 0), models.InstallmentStatusPending, nil, nil, nil).
			AddRow("bk_1", 3, int64(3334), due.AddDate(0, 2, 0), models.InstallmentStatusPending, nil, nil, nil))

	b, err := s.GetBooking(context.Background(), "bk_1")
	require.NoError(t, err)
	require.NotNil(t, b.Emi)

	assert.Equal(t, 3, b.Emi.TotalTenure)
	assert.Len(t, b.Emi.Schedule, 3)
	assert.Equal(t, 1, b.Emi.PaidCount())
	assert.Equal(t, int64(6667), b.Emi.RemainingAmount())
	assert.Equal(t, 2, b.Emi.NextPending().InstallmentNumber)
	assert.Equal(t, "pay_abc", b.Emi.Schedule[0].PaymentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingNonEmiSkipsScheduleQuery(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM bookings WHERE id = $1")).
		WithArgs("bk_2").
		WillReturnRows(sqlmock.NewRows(bookingColumns).
			AddRow("bk_2", "u1", nil, int64(5000), "INR", false, models.BookingStatusPending,
				false, 0, int64(0), int64(0), nil, nil, now, now))

	b, err := s.GetBooking(context.Background(), "bk_2")
	require.NoError(t, err)
	assert.Nil(t, b.Emi)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkInstallmentPaidConditional(t *testing.T) {
	s, mock := newMockStore(t)
	paidAt := time.Now()

	mock.ExpectExec("UPDATE installments").
		WithArgs(models.InstallmentStatusPaid, paidAt, "pay_1", "TXN-9", "bk_1", 2, models.InstallmentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := s.MarkInstallmentPaid(context.Background(), "bk_1", 2, "pay_1", "TXN-9", paidAt)
	require.NoError(t, err)
	assert.True(t, updated)

	// Second attempt: the WHERE status = pending clause no longer matches.
	mock.ExpectExec("UPDATE installments").
		WithArgs(models.InstallmentStatusPaid, paidAt, "pay_1", "TXN-9", "bk_1", 2, models.InstallmentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err = s.MarkInstallmentPaid(context.Background(), "bk_1", 2, "pay_1", "TXN-9", paidAt)
	require.NoError(t, err)
	assert.False(t, updated, "an already-paid installment must not be re-marked")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingConditional(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE bookings").
		WithArgs(models.BookingStatusCancel, "change of plans", "bk_1", models.BookingStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.CancelBooking(context.Background(), "bk_1", "change of plans")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE bookings").
		WithArgs(models.BookingStatusCancel, "again", "bk_1", models.BookingStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = s.CancelBooking(context.Background(), "bk_1", "again")
	require.NoError(t, err)
	assert.False(t, ok, "a second cancel must not win")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPaidInstallments(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM installments").
		WithArgs("bk_1", models.InstallmentStatusPaid).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountPaidInstallments(context.Background(), "bk_1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
