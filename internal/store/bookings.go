package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"emi-service/internal/models"
)

// bookingRow is the flat relational shape of a booking document.
type bookingRow struct {
	ID                 string         `db:"id"`
	UserID             string         `db:"user_id"`
	PackageID          sql.NullString `db:"package_id"`
	FinalPrice         int64          `db:"final_price"`
	Currency           string         `db:"currency"`
	IsPrepaid          bool           `db:"is_prepaid"`
	Status             string         `db:"status"`
	IsEmi              bool           `db:"is_emi"`
	TotalTenure        int            `db:"total_tenure"`
	MonthlyAmount      int64          `db:"monthly_amount"`
	EmiTotalAmount     int64          `db:"emi_total_amount"`
	CancellationReason sql.NullString `db:"cancellation_reason"`
	CancelledAt        *time.Time     `db:"cancelled_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

type installmentRow struct {
	BookingID         string         `db:"booking_id"`
	InstallmentNumber int            `db:"installment_number"`
	Amount            int64          `db:"amount"`
	DueDate           time.Time      `db:"due_date"`
	Status            string         `db:"status"`
	PaidAt            *time.Time     `db:"paid_at"`
	PaymentID         sql.NullString `db:"payment_id"`
	TransactionID     sql.NullString `db:"transaction_id"`
}

func (r bookingRow) toModel() *models.Booking {
	b := &models.Booking{
		ID:          r.ID,
		UserID:      r.UserID,
		PackageID:   r.PackageID.String,
		FinalPrice:  r.FinalPrice,
		Currency:    r.Currency,
		IsPrepaid:   r.IsPrepaid,
		Status:      r.Status,
		CancelledAt: r.CancelledAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	b.CancellationReason = r.CancellationReason.String
	if r.IsEmi {
		b.Emi = &models.EmiDetails{
			IsEmiBooking:  true,
			TotalTenure:   r.TotalTenure,
			MonthlyAmount: r.MonthlyAmount,
			TotalAmount:   r.EmiTotalAmount,
		}
	}
	return b
}

func (r installmentRow) toModel() models.Installment {
	return models.Installment{
		InstallmentNumber: r.InstallmentNumber,
		Amount:            r.Amount,
		DueDate:           r.DueDate,
		Status:            r.Status,
		PaidAt:            r.PaidAt,
		PaymentID:         r.PaymentID.String,
		TransactionID:     r.TransactionID.String,
	}
}

// CreateBooking inserts the booking and, for EMI bookings, its full schedule
// in a single transaction.
func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	isEmi := b.Emi != nil && b.Emi.IsEmiBooking
	var tenure int
	var monthly, emiTotal int64
	if isEmi {
		tenure = b.Emi.TotalTenure
		monthly = b.Emi.MonthlyAmount
		emiTotal = b.Emi.TotalAmount
	}

	query := `
		INSERT INTO bookings (id, user_id, package_id, final_price, currency, is_prepaid, status,
			is_emi, total_tenure, monthly_amount, emi_total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		b.ID, b.UserID, nullable(b.PackageID), b.FinalPrice, b.Currency, b.IsPrepaid, b.Status,
		isEmi, tenure, monthly, emiTotal)
	if err := row.Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if isEmi {
		for _, inst := range b.Emi.Schedule {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO installments (booking_id, installment_number, amount, due_date, status)
				VALUES ($1, $2, $3, $4, $5)`,
				b.ID, inst.InstallmentNumber, inst.Amount, inst.DueDate, inst.Status)
			if err != nil {
				return fmt.Errorf("failed to insert installment %d: %w", inst.InstallmentNumber, err)
			}
		}
	}

	return tx.Commit()
}

// GetBooking loads a booking and its installment schedule, ordered by
// installment number ascending. Returns sql.ErrNoRows when absent.
func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var row bookingRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM bookings WHERE id = $1", id)
	if err != nil {
		return nil, err
	}

	b := row.toModel()
	if b.Emi != nil {
		var rows []installmentRow
		err = s.db.SelectContext(ctx, &rows, `
			SELECT * FROM installments
			WHERE booking_id = $1
			ORDER BY installment_number ASC`, id)
		if err != nil {
			return nil, err
		}
		b.Emi.Schedule = make([]models.Installment, 0, len(rows))
		for _, r := range rows {
			b.Emi.Schedule = append(b.Emi.Schedule, r.toModel())
		}
	}

	return b, nil
}

// ListBookingsByUser returns one page of the user's bookings, newest first,
// plus the total count for pagination.
func (s *Store) ListBookingsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Booking, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM bookings WHERE user_id = $1", userID); err != nil {
		return nil, 0, err
	}

	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	bookings := make([]*models.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.toModel())
	}
	return bookings, total, nil
}

// UpdateBookingStatus updates booking status
func (s *Store) UpdateBookingStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	return err
}

// CancelBooking flips the booking to cancel, conditionally on its current
// status so that concurrent cancels cannot both win. Returns false when the
// booking was already cancelled, completed, or missing.
func (s *Store) CancelBooking(ctx context.Context, id, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, cancellation_reason = $2, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status NOT IN ($1, $4)`,
		models.BookingStatusCancel, reason, id, models.BookingStatusCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkInstallmentPaid flips one installment to paid, conditionally on it
// still being pending. Returns false when the row was already paid (or
// missing) so that a concurrent or repeated verification observes exactly one
// winner and paid_at is written once.
func (s *Store) MarkInstallmentPaid(ctx context.Context, bookingID string, number int, paymentID, transactionID string, paidAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE installments
		SET status = $1, paid_at = $2, payment_id = $3, transaction_id = $4
		WHERE booking_id = $5 AND installment_number = $6 AND status = $7`,
		models.InstallmentStatusPaid, paidAt, paymentID, transactionID,
		bookingID, number, models.InstallmentStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountPaidInstallments recomputes the paid count from the schedule rows.
func (s *Store) CountPaidInstallments(ctx context.Context, bookingID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM installments
		WHERE booking_id = $1 AND status = $2`,
		bookingID, models.InstallmentStatusPaid)
	return n, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
