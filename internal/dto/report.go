package dto

import "github.com/ritmo-academy/academy-api/internal/models"

// ReportRequest asks for an asynchronous export.
type ReportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required,oneof=revenue attendance"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	DateFrom string              `json:"dateFrom" validate:"required"`
	DateTo   string              `json:"dateTo" validate:"required"`
}

// ReportJobResponse acknowledges a queued job.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress and the download link once done.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
