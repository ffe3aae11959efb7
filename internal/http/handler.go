package http

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"complaint-analytics-service/internal/aging"
	"complaint-analytics-service/internal/export"
	"complaint-analytics-service/internal/http/middleware"
	"complaint-analytics-service/internal/ingest"
	"complaint-analytics-service/internal/model"
	"complaint-analytics-service/internal/service"
)

var errBadInput = errors.New("bad input")

type Handler struct {
	reports     *service.ReportService
	log         zerolog.Logger
	maxUploadMB int
}

func NewHandler(reports *service.ReportService, log zerolog.Logger, maxUploadMB int) *Handler {
	return &Handler{reports: reports, log: log, maxUploadMB: maxUploadMB}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := r.Group("/")
	protected.Use(authMiddleware, middleware.RequireRole(model.RoleAnalyst, model.RoleAdmin))

	protected.GET("/views", h.listViews)
	protected.POST("/datasets", h.uploadDataset)
	protected.GET("/datasets", h.listDatasets)
	protected.GET("/datasets/:id", h.getDataset)
	protected.DELETE("/datasets/:id", h.deleteDataset)
	protected.GET("/datasets/:id/reports/:view", h.getViewReport)
	protected.POST("/datasets/:id/reports", h.postReport)
	protected.GET("/datasets/:id/watchlist", h.getWatchlist)
	protected.GET("/datasets/:id/members/:member", h.getMember)
	protected.GET("/datasets/:id/series", h.getSeries)
}

func (h *Handler) listViews(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(service.Views()))
}

func (h *Handler) uploadDataset(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	if h.maxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxUploadMB)<<20)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(fmt.Sprintf("upload exceeds %d MB", h.maxUploadMB)))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("multipart form with files is required"))
		return
	}

	headers := form.File["files"]
	sources := make([]ingest.Source, 0, len(headers))
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(fmt.Sprintf("unable to open %s", fh.Filename)))
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(file)
		sources = append(sources, ingest.Source{Name: fh.Filename, Body: file})
	}

	dataset, err := h.reports.Upload(c.Request.Context(), principal, c.PostForm("name"), sources)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(dataset))
}

func (h *Handler) listDatasets(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	datasets, err := h.reports.ListDatasets(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(datasets))
}

func (h *Handler) getDataset(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	datasetID, ok := parseDatasetID(c)
	if !ok {
		return
	}

	dataset, err := h.reports.GetDataset(c.Request.Context(), principal, datasetID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(dataset))
}

func (h *Handler) deleteDataset(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	datasetID, ok := parseDatasetID(c)
	if !ok {
		return
	}

	if err := h.reports.DeleteDataset(c.Request.Context(), principal, datasetID); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) getViewReport(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	datasetID, ok := parseDatasetID(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	filter, err := parseReportFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	req := service.ReportRequest{
		Buckets: c.Query("buckets"),
		Sort:    c.Query("sort"),
		Filter:  filter,
	}
	if raw := strings.TrimSpace(c.Query("daily")); raw != "" {
		if req.Daily, err = strconv.ParseBool(raw); err != nil {
			h.handleError(c, fmt.Errorf("%w: daily must be a boolean", errBadInput))
			return
		}
	}

	view := c.Param("view")
	report, err := h.reports.ViewReport(c.Request.Context(), principal, datasetID, view, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.respondTable(c, format, report, view)
}

type reportBody struct {
	GroupKeys   []string `json:"group_keys"`
	Buckets     string   `json:"buckets"`
	Daily       bool     `json:"daily"`
	EntityField string   `json:"entity_field"`
	TotalLabel  string   `json:"total_label"`
	Sort        string   `json:"sort"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Anchor      string   `json:"anchor"`
	Cities      []string `json:"cities"`
	Hubs        []string `json:"hubs"`
	Categories  []string `json:"categories"`
	VIP         *bool    `json:"vip"`
	Search      string   `json:"q"`
	Format      string   `json:"format"`
}

func (h *Handler) postReport(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	datasetID, ok := parseDatasetID(c)
	if !ok {
		return
	}

	var body reportBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid JSON body"))
		return
	}
	format, err := export.ParseFormat(body.Format)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filter := model.ReportFilter{
		Cities:     body.Cities,
		Hubs:       body.Hubs,
		Categories: body.Categories,
		VIP:        body.VIP,
		Search:     body.Search,
	}
	if filter.Range.From, err = parseDay("from", body.From); err != nil {
		h.handleError(c, err)
		return
	}
	if filter.Range.To, err = parseDay("to", body.To); err != nil {
		h.handleError(c, err)
		return
	}
	if filter.Anchor, err = parseDay("anchor", body.Anchor); err != nil {
		h.handleError(c, err)
		return
	}

	report, err := h.reports.GenerateReport(c.Request.Context(), principal, datasetID, service.ReportRequest{
		GroupKeys:   body.GroupKeys,
		Buckets:     body.Buckets,
		Daily:       body.Daily,
		EntityField: body.EntityField,
		TotalLabel:  body.TotalLabel,
		Sort:        body.Sort,
		Filter:      filter,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.respondTable(c, format, report, "report")
}

func (h *Handler) getWatchlist(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	datasetID, ok := parseDatasetID(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	filter, err := parseReportFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	watchlist, err := h.reports.CustomerWatchlist(c.Request.Context(), principal, datasetID, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.respondTable(c, format, watchlist, "refund_misuse_report")
}

func (h *Handler) getMember(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	datasetID, ok := parseDatasetID(c)
	if !ok {
		return
	}
	filter, err := parseReportFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	drilldown, err := h.reports.MemberDrilldown(c.Request.Context(), principal, datasetID, c.Param("member"), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(drilldown))
}

func (h *Handler) getSeries(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	datasetID, ok := parseDatasetID(c)
	if !ok {
		return
	}
	filter, err := parseReportFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	series, err := h.reports.Series(c.Request.Context(), principal, datasetID, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(series))
}

// respondTable writes JSON in the usual envelope, or a file download for the
// csv and xlsx formats.
func (h *Handler) respondTable(c *gin.Context, format export.Format, table export.Tabular, name string) {
	if format == export.FormatJSON {
		c.JSON(http.StatusOK, successResponse(table))
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, table, name); err != nil {
		h.handleError(c, err)
		return
	}
	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func parseDatasetID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid dataset id"))
		return uuid.Nil, false
	}
	return id, true
}

func parseReportFilter(c *gin.Context) (model.ReportFilter, error) {
	filter := model.ReportFilter{
		Cities:     queryList(c, "city"),
		Hubs:       queryList(c, "hub"),
		Categories: queryList(c, "category"),
		Search:     strings.TrimSpace(c.Query("q")),
	}

	var err error
	if filter.Range.From, err = parseDay("from", c.Query("from")); err != nil {
		return filter, err
	}
	if filter.Range.To, err = parseDay("to", c.Query("to")); err != nil {
		return filter, err
	}
	if filter.Anchor, err = parseDay("anchor", c.Query("anchor")); err != nil {
		return filter, err
	}

	if raw := strings.TrimSpace(c.Query("vip")); raw != "" {
		vip, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: vip must be a boolean", errBadInput)
		}
		filter.VIP = &vip
	}

	return filter, nil
}

// queryList accepts both repeated parameters and comma separated values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseDay(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(model.DateLayout, raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return model.DateOnly(parsed), nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadInput, name)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, aging.ErrInvalidConfiguration),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrRangeTooLarge),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, errBadInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNoValidData):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
