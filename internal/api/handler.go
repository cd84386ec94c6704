package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"emi-service/internal/receipt"
	"emi-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	emiService     *service.EmiService
	bookingService *service.BookingService
	jwtSecret      string
	allowedOrigins []string
}

// NewHandler creates a new HTTP handler
func NewHandler(emiService *service.EmiService, bookingService *service.BookingService, jwtSecret string, allowedOrigins []string) *Handler {
	return &Handler{
		emiService:     emiService,
		bookingService: bookingService,
		jwtSecret:      jwtSecret,
		allowedOrigins: allowedOrigins,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(h.allowedOrigins))
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(h.jwtSecret))
	{
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings", h.listBookings)
		v1.GET("/bookings/:id", h.getBooking)
		v1.POST("/bookings/:id/cancel", h.cancelBooking)

		v1.POST("/emi/pay", h.initiatePayment)
		v1.POST("/emi/verify", h.verifyPayment)
		v1.GET("/emi/status/:id", h.emiStatus)
		v1.GET("/emi/receipt/:paymentId", h.paymentReceipt)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createBooking handles checkout, with an optional installment plan.
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err.Error())
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), &req, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, booking, "booking created")
}

// listBookings returns one page of the caller's bookings.
func (h *Handler) listBookings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	bookings, total, err := h.bookingService.ListBookings(c.Request.Context(), currentUser(c), limit, page)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, NewPage(bookings, total, limit, page), "")
}

// getBooking handles get booking by ID
func (h *Handler) getBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, booking, "")
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

// cancelBooking cancels a booking and reports the refund.
func (h *Handler) cancelBooking(c *gin.Context) {
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err.Error())
			return
		}
	}

	resp, err := h.bookingService.CancelBooking(c.Request.Context(), c.Param("id"), req.Reason, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp, "booking cancelled")
}

type initiatePaymentRequest struct {
	BookingID         string `json:"bookingId" binding:"required"`
	InstallmentNumber int    `json:"installmentNumber" binding:"required,min=1"`
}

// initiatePayment starts a payment session for one installment.
func (h *Handler) initiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err.Error())
		return
	}

	resp, err := h.emiService.InitiateInstallmentPayment(c.Request.Context(), req.BookingID, req.InstallmentNumber, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, resp, "payment initiated")
}

type verifyPaymentRequest struct {
	PaymentID     string `json:"paymentId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
}

// verifyPayment confirms a payment session and marks its installment paid.
func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err.Error())
		return
	}

	resp, err := h.emiService.VerifyInstallmentPayment(c.Request.Context(), req.PaymentID, req.TransactionID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp, "payment verified")
}

// emiStatus reports plan progress for a booking id or a pay_ session id.
// The prefix is classified here, once, at the boundary.
func (h *Handler) emiStatus(c *gin.Context) {
	id := service.ParseIdentifier(c.Param("id"))

	resp, err := h.emiService.GetEmiStatus(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp, "")
}

// paymentReceipt streams a PDF receipt for a completed installment payment.
func (h *Handler) paymentReceipt(c *gin.Context) {
	paymentID := c.Param("paymentId")

	sess, booking, err := h.emiService.GetReceiptData(c.Request.Context(), paymentID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	pdf, err := receipt.Render(booking, sess)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", paymentID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
