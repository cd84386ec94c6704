package api

import (
	"net/http"

	"emi-service/internal/domain"
	"emi-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope every endpoint returns. Success responses carry
// data and an optional message; failures carry error plus a stable code.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Page is the pagination wrapper used by list endpoints.
type Page struct {
	Docs        interface{} `json:"docs"`
	TotalDocs   int         `json:"totalDocs"`
	Limit       int         `json:"limit"`
	Page        int         `json:"page"`
	TotalPages  int         `json:"totalPages"`
	HasNextPage bool        `json:"hasNextPage"`
	HasPrevPage bool        `json:"hasPrevPage"`
}

// NewPage computes the derived pagination fields from the totals.
func NewPage(docs interface{}, totalDocs, limit, page int) Page {
	totalPages := 0
	if limit > 0 {
		totalPages = (totalDocs + limit - 1) / limit
	}
	return Page{
		Docs:        docs,
		TotalDocs:   totalDocs,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1 && totalDocs > 0,
	}
}

func respondOK(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

// respondError maps a domain error to its HTTP status and stable code.
// Anything else is treated as an internal failure and its cause stays in
// the logs.
func respondError(c *gin.Context, err error) {
	if de, ok := domain.As(err); ok {
		if de.Code == domain.CodeInternal {
			util.GetLogger().Error("Request failed",
				zap.String("path", c.FullPath()),
				zap.Error(de))
		}
		c.JSON(de.Status, Response{Success: false, Error: de.Message, Code: de.Code})
		return
	}

	util.GetLogger().Error("Unhandled error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal error",
		Code:    domain.CodeInternal,
	})
}

func respondValidation(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
		Code:    domain.CodeValidation,
	})
}
