// Package receipt renders PDF receipts for completed installment payments.
package receipt

import (
	"bytes"
	"fmt"

	"emi-service/internal/models"

	"github.com/phpdave11/gofpdf"
)

// Render builds a one-page receipt for a completed payment session. The
// caller has already checked ownership and that the session is completed.
func Render(booking *models.Booking, sess *models.PaymentSession) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Receipt No  : "+sess.PaymentID)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date        : "+sess.UpdatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Booking     : "+booking.ID)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Payment details:")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	if sess.IsEmi {
		pdf.Cell(0, 6, fmt.Sprintf("Installment %d of %d", sess.InstallmentNumber, sess.EmiMonths))
		pdf.Ln(6)
		pdf.Cell(0, 6, "Plan total  : "+formatAmount(sess.TotalAmount, sess.Currency))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, "Amount paid : "+formatAmount(sess.Amount, sess.Currency))
	pdf.Ln(6)
	if sess.TransactionID != "" {
		pdf.Cell(0, 6, "Reference   : "+sess.TransactionID)
		pdf.Ln(6)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "This receipt confirms a completed payment. Keep it for your records.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatAmount renders minor units as a decimal amount with the currency code.
func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, minor/100, minor%100)
}
