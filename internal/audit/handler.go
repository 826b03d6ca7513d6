package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/atlas-desk/atlas-desk/internal/platform/httpx"
	"github.com/atlas-desk/atlas-desk/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// Guard wraps routes with a permission requirement. authz.Middleware
// satisfies it.
type Guard interface {
	RequireAny(perms ...string) func(http.Handler) http.Handler
}

// Handler serves the audit timeline and CSV export.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
	now     func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, now: time.Now}
}

// MountRoutes registers audit endpoints. Exports are rate limited per user
// since they scan the full table.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(exportRateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermSecurityView, shared.PermAdministrationView))
		r.Get("/", h.handleTimeline)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export.csv", h.handleExport)
		})
	})
}

type entryResponse struct {
	ID       string         `json:"id"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"occurred_at"`
}

type timelineResponse struct {
	Entries  []entryResponse `json:"entries"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	HasNext  bool            `json:"has_next"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	entries := make([]entryResponse, 0, len(result.Entries))
	for _, e := range result.Entries {
		entries = append(entries, entryResponse{
			ID:       e.ID.String(),
			ActorID:  e.ActorID,
			Action:   e.Action,
			Entity:   e.Entity,
			EntityID: e.EntityID,
			Meta:     e.Meta,
			At:       e.At,
		})
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Entries:  entries,
		Page:     result.Paging.Page,
		PageSize: result.Paging.PageSize,
		HasNext:  result.Paging.HasNext,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entries, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	csvBytes, err := WriteCSV(entries)
	if err != nil {
		h.logger.Error("encode audit csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write audit csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return TimelineFilters{}, errInvalidFilter("to")
	}
	// "to" is inclusive in the query string but the repository treats it as
	// an exclusive upper bound.
	to = to.Add(24 * time.Hour)
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = to.Add(-defaultDateRange - 24*time.Hour).Format("2006-01-02")
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return TimelineFilters{}, errInvalidFilter("from")
	}
	if from.After(to) {
		return TimelineFilters{}, errInvalidFilter("range")
	}
	if to.Sub(from) > maxDateRange+24*time.Hour {
		return TimelineFilters{}, errInvalidFilter("range")
	}

	filters := TimelineFilters{
		From:   from,
		To:     to,
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	if v := strings.TrimSpace(q.Get("actor_id")); v != "" {
		actorID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || actorID <= 0 {
			return TimelineFilters{}, errInvalidFilter("actor_id")
		}
		filters.ActorID = actorID
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 {
			return TimelineFilters{}, errInvalidFilter("page")
		}
		filters.Page = page
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return TimelineFilters{}, errInvalidFilter("page_size")
		}
		filters.PageSize = size
	}
	return filters, nil
}

type filterError struct {
	field string
}

func (e filterError) Error() string {
	return "invalid filter: " + e.field
}

func errInvalidFilter(field string) error {
	return filterError{field: field}
}

func exportRateKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(actor.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
