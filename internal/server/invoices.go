package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/ledger"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.document"

// InvoicesHandler serves the issued ledger.
type InvoicesHandler struct {
	ledger *ledger.Service
	log    *slog.Logger
}

func NewInvoicesHandler(ledger *ledger.Service, log *slog.Logger) *InvoicesHandler {
	return &InvoicesHandler{ledger: ledger, log: log}
}

func (h *InvoicesHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	filter, err := invoicesFilter(c)
	if err != nil {
		c.Error(err)
		return
	}

	invoices, err := h.ledger.List(ctx, filter)
	if err != nil {
		h.log.Error("failed to list invoices", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToListInvoicesResponse(invoices))
}

func (h *InvoicesHandler) Get(c *gin.Context) {
	series, number, err := invoiceRef(c)
	if err != nil {
		c.Error(err)
		return
	}

	invoice, err := h.ledger.Get(c.Request.Context(), series, number)
	if err != nil {
		h.log.Error("failed to get invoice", "series", series, "number", number, "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToInvoiceResponse(invoice))
}

// GetXML serves the stored artifact byte for byte, under its canonical
// filename.
func (h *InvoicesHandler) GetXML(c *gin.Context) {
	series, number, err := invoiceRef(c)
	if err != nil {
		c.Error(err)
		return
	}

	filename, data, err := h.ledger.GetXML(c.Request.Context(), series, number)
	if err != nil {
		h.log.Error("failed to get invoice XML", "series", series, "number", number, "error", err)
		c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/xml", data)
}

// Void flags the invoice; its number stays burned.
func (h *InvoicesHandler) Void(c *gin.Context) {
	series, number, err := invoiceRef(c)
	if err != nil {
		c.Error(err)
		return
	}

	invoice, err := h.ledger.Void(c.Request.Context(), series, number)
	if err != nil {
		h.log.Error("failed to void invoice", "series", series, "number", number, "error", err)
		c.Error(err)
		return
	}
	h.log.Info("invoice voided", "series", series, "number", number)
	c.JSON(http.StatusOK, ToInvoiceResponse(invoice))
}

// Export streams the ledger as an XLSX workbook, narrowed by the same
// filters as List.
func (h *InvoicesHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	filter, err := invoicesFilter(c)
	if err != nil {
		c.Error(err)
		return
	}

	data, err := h.ledger.ExportXLSX(ctx, filter)
	if err != nil {
		h.log.Error("failed to export invoices", "error", err)
		c.Error(err)
		return
	}
	filename := fmt.Sprintf("fatture_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func invoicesFilter(c *gin.Context) (repository.ListInvoicesFilter, error) {
	var filter repository.ListInvoicesFilter
	if raw := c.Query("series"); raw != "" {
		series, ok := constants.ParseSeries(raw)
		if !ok {
			return filter, common.NewAppError("INVALID_SERIES",
				fmt.Sprintf("unknown series %q", raw), common.ErrInvalidInput)
		}
		filter.Series = &series
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := parseInvoiceStatus(raw)
		if !ok {
			return filter, common.NewAppError("INVALID_STATUS",
				fmt.Sprintf("unknown invoice status %q", raw), common.ErrInvalidInput)
		}
		filter.Status = &status
	}
	return filter, nil
}

func invoiceRef(c *gin.Context) (constants.Series, int64, error) {
	series, ok := constants.ParseSeries(c.Param("series"))
	if !ok {
		return "", 0, common.NewAppError("INVALID_SERIES",
			fmt.Sprintf("unknown series %q", c.Param("series")), common.ErrInvalidInput)
	}
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || number <= 0 {
		return "", 0, common.NewAppError("INVALID_NUMBER",
			fmt.Sprintf("invalid invoice number %q", c.Param("number")), common.ErrInvalidInput)
	}
	return series, number, nil
}
