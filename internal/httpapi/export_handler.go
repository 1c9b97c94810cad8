package httpapi

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/wahans/throttl/internal/usage"
	"github.com/wahans/throttl/internal/utils"
)

// ExportHandler serves per-owner usage exports
type ExportHandler struct {
	reporter *usage.Reporter
	logger   *utils.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(reporter *usage.Reporter) *ExportHandler {
	return &ExportHandler{
		reporter: reporter,
		logger:   utils.NewLogger("export-handler"),
	}
}

// Export handles GET /api/usage/export?ownerId=&format=json|csv
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "ownerId required")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		utils.RespondWithError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}

	rows, err := h.reporter.Export(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to export usage", "owner_id", ownerID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to export usage")
		return
	}

	if format == "csv" {
		h.writeCSV(w, rows)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, rows)
}

func (h *ExportHandler) writeCSV(w http.ResponseWriter, rows []usage.ReportRow) {
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"keyId", "keyName", "planName", "currentUsage", "monthlyQuota", "percentUsed"}); err != nil {
		h.logger.Error("failed to write CSV header", "error", err)
		return
	}

	for _, row := range rows {
		record := []string{
			row.KeyID,
			row.KeyName,
			row.PlanName,
			strconv.FormatInt(row.CurrentUsage, 10),
			strconv.FormatInt(row.MonthlyQuota, 10),
			strconv.FormatFloat(row.PercentUsed, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			h.logger.Error("failed to write CSV row", "error", err)
			return
		}
	}
}
