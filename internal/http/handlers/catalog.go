package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfman30/dental-booking-dashboard/internal/catalog"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

type catalogReader interface {
	Services(ctx context.Context) []catalog.Service
	Specialists(ctx context.Context) []catalog.Specialist
	Invalidate()
}

// CatalogHandler exposes the cached reference data.
type CatalogHandler struct {
	cache       catalogReader
	defaultLang locale.Language
	logger      *logging.Logger
}

func NewCatalogHandler(cache catalogReader, defaultLang locale.Language, logger *logging.Logger) *CatalogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if defaultLang == "" {
		defaultLang = locale.EN
	}
	return &CatalogHandler{cache: cache, defaultLang: defaultLang, logger: logger.Component("http.catalog")}
}

// ServiceResponse is a service with its name resolved for one language.
type ServiceResponse struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	Translations    locale.Name `json:"translations"`
	Price           float64     `json:"price"`
	DurationMinutes int         `json:"duration_minutes"`
	Category        string      `json:"category,omitempty"`
	Icon            string      `json:"icon,omitempty"`
}

// SpecialistResponse is a specialist with the role resolved for one language.
type SpecialistResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
}

func (h *CatalogHandler) language(r *http.Request) (locale.Language, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("lang"))
	if raw == "" {
		return h.defaultLang, true
	}
	return locale.ParseLanguage(raw)
}

// ListServices returns the active services.
// GET /admin/catalog/services?lang=
func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	lang, ok := h.language(r)
	if !ok {
		jsonError(w, "unsupported language", http.StatusBadRequest)
		return
	}
	services := h.cache.Services(r.Context())
	out := make([]ServiceResponse, 0, len(services))
	for _, svc := range services {
		out = append(out, ServiceResponse{
			ID:              svc.ID,
			Name:            svc.Name.ResolveOr(lang, svc.ID),
			Description:     svc.Description.Resolve(lang),
			Translations:    svc.Name,
			Price:           svc.Price,
			DurationMinutes: svc.DurationMinutes,
			Category:        svc.Category,
			Icon:            svc.Icon,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out, "language": lang})
}

// ListSpecialists returns the active specialists.
// GET /admin/catalog/specialists?lang=
func (h *CatalogHandler) ListSpecialists(w http.ResponseWriter, r *http.Request) {
	lang, ok := h.language(r)
	if !ok {
		jsonError(w, "unsupported language", http.StatusBadRequest)
		return
	}
	specialists := h.cache.Specialists(r.Context())
	out := make([]SpecialistResponse, 0, len(specialists))
	for _, sp := range specialists {
		out = append(out, SpecialistResponse{
			ID:          sp.ID,
			Name:        sp.Name,
			Role:        sp.Role.Resolve(lang),
			PhotoURL:    sp.PhotoURL,
			Specialties: sp.Specialties,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"specialists": out, "language": lang})
}

// Invalidate clears the reference data cache after catalog edits.
// POST /admin/catalog/invalidate
func (h *CatalogHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.cache.Invalidate()
	h.logger.Info("catalog invalidated by operator")
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}
