package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"time"

	"land_leads_app_go/models"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/queue"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AdminHandler serves the queued inquiries to operators
type AdminHandler struct {
	registry *campaigns.Registry
	store    *queue.Store
	storage  services.StorageProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdminHandler creates the admin handler. A nil storage disables the archive routes.
func NewAdminHandler(registry *campaigns.Registry, store *queue.Store, storage services.StorageProvider, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		registry: registry,
		store:    store,
		storage:  storage,
		logger:   logger.Named("admin"),
		now:      time.Now,
	}
}

type inquiriesResponse struct {
	Campaign  string                    `json:"campaign"`
	QueueKey  string                    `json:"queue_key"`
	Count     int                       `json:"count"`
	Inquiries []models.SubmissionRecord `json:"inquiries"`
}

// ListInquiries returns a campaign queue, newest first
func (h *AdminHandler) ListInquiries(c echo.Context) error {
	camp, err := h.campaign(c)
	if err != nil {
		return err
	}

	records := h.store.ReadAll(c.Request().Context(), camp.Slug)
	if records == nil {
		records = []models.SubmissionRecord{}
	}
	return c.JSON(http.StatusOK, inquiriesResponse{
		Campaign:  camp.Slug,
		QueueKey:  queue.Key(camp.Slug),
		Count:     len(records),
		Inquiries: records,
	})
}

// ExportInquiries downloads a campaign queue as an Excel workbook
func (h *AdminHandler) ExportInquiries(c echo.Context) error {
	camp, err := h.campaign(c)
	if err != nil {
		return err
	}

	records := h.store.ReadAll(c.Request().Context(), camp.Slug)
	buf, err := services.BuildInquiriesWorkbook(camp.Slug, camp.Schema, records)
	if err != nil {
		h.logger.Error("inquiry export failed", zap.String("campaign", camp.Slug), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate export")
	}

	filename := fmt.Sprintf("%s_inquiries_%s.xlsx", camp.Slug, h.now().UTC().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, services.XLSXContentType, buf.Bytes())
}

type archiveResponse struct {
	Campaign    string `json:"campaign"`
	Key         string `json:"key"`
	Count       int    `json:"count"`
	FileSize    int64  `json:"file_size"`
	DownloadURL string `json:"download_url"`
}

// CreateArchive stores a snapshot workbook of a campaign queue in archive storage
func (h *AdminHandler) CreateArchive(c echo.Context) error {
	camp, err := h.campaign(c)
	if err != nil {
		return err
	}
	if h.storage == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Archive storage is not configured")
	}
	ctx := c.Request().Context()

	records := h.store.ReadAll(ctx, camp.Slug)
	buf, err := services.BuildInquiriesWorkbook(camp.Slug, camp.Schema, records)
	if err != nil {
		h.logger.Error("inquiry export failed", zap.String("campaign", camp.Slug), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate export")
	}

	res, err := services.ArchiveInquiries(ctx, h.storage, camp.Slug, buf)
	if err != nil {
		h.logger.Error("inquiry archive failed", zap.String("campaign", camp.Slug), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to archive export")
	}

	link, err := h.storage.GetSignedURL(ctx, res.Key, services.ArchiveLinkTTL)
	if err != nil {
		h.logger.Warn("archive link signing failed", zap.String("key", res.Key), zap.Error(err))
	}
	if link == "" {
		link = "/admin/archives/" + res.Key
	}

	h.logger.Info("inquiries archived", zap.String("campaign", camp.Slug), zap.String("key", res.Key), zap.Int("count", len(records)))
	return c.JSON(http.StatusCreated, archiveResponse{
		Campaign:    camp.Slug,
		Key:         res.Key,
		Count:       len(records),
		FileSize:    res.FileSize,
		DownloadURL: link,
	})
}

// DownloadArchive redirects to a signed link when the storage offers one and
// streams the workbook otherwise.
func (h *AdminHandler) DownloadArchive(c echo.Context) error {
	if h.storage == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Archive storage is not configured")
	}
	key := c.Param("*")
	if err := services.ValidateArchiveKey(key); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid archive key")
	}
	ctx := c.Request().Context()

	link, err := h.storage.GetSignedURL(ctx, key, services.ArchiveLinkTTL)
	if err != nil {
		h.logger.Warn("archive link signing failed", zap.String("key", key), zap.Error(err))
	}
	if link != "" {
		return c.Redirect(http.StatusFound, link)
	}

	body, contentType, err := h.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound, "Archive not found")
		}
		h.logger.Error("archive download failed", zap.String("key", key), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to read archive")
	}
	defer body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	return c.Stream(http.StatusOK, contentType, body)
}

func (h *AdminHandler) campaign(c echo.Context) (*campaigns.Campaign, error) {
	camp, err := h.registry.Get(c.Param("campaign"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Campaign not found")
	}
	return camp, nil
}
