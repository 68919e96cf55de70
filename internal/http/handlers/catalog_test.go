package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking-dashboard/internal/catalog"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

func TestCatalogListServicesResolvesLanguage(t *testing.T) {
	h := NewCatalogHandler(catalog.NewCache(nil, catalog.Options{}), locale.EN, logging.Default())

	rec := httptest.NewRecorder()
	h.ListServices(rec, httptest.NewRequest(http.MethodGet, "/admin/catalog/services?lang=lv", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Services []ServiceResponse `json:"services"`
		Language string            `json:"language"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "LV", resp.Language)
	require.Len(t, resp.Services, 10)
	assert.Equal(t, "s1", resp.Services[0].ID)
	assert.Equal(t, "Integrēta zobu un mutes dobuma pārbaude", resp.Services[0].Name)
	assert.InDelta(t, 50.0, resp.Services[0].Price, 1e-9)
	assert.Equal(t, "Integrated Teeth and Oral Cavity Test", resp.Services[0].Translations.Resolve(locale.EN))
}

func TestCatalogListServicesRejectsUnknownLanguage(t *testing.T) {
	h := NewCatalogHandler(catalog.NewCache(nil, catalog.Options{}), "", nil)

	rec := httptest.NewRecorder()
	h.ListServices(rec, httptest.NewRequest(http.MethodGet, "/admin/catalog/services?lang=de", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unsupported language"}`, rec.Body.String())
}

func TestCatalogListSpecialists(t *testing.T) {
	h := NewCatalogHandler(catalog.NewCache(nil, catalog.Options{}), locale.RU, nil)

	rec := httptest.NewRecorder()
	h.ListSpecialists(rec, httptest.NewRequest(http.MethodGet, "/admin/catalog/specialists", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Specialists []SpecialistResponse `json:"specialists"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Specialists, 3)
	assert.Equal(t, "Dr. Anna Bērziņa", resp.Specialists[0].Name)
	assert.Equal(t, "Главный хирург", resp.Specialists[0].Role)
}

type countingCatalog struct {
	catalogReader
	invalidations int
}

func (c *countingCatalog) Invalidate() { c.invalidations++ }

func TestCatalogInvalidate(t *testing.T) {
	cache := &countingCatalog{catalogReader: catalog.NewCache(nil, catalog.Options{})}
	h := NewCatalogHandler(cache, locale.EN, nil)

	rec := httptest.NewRecorder()
	h.Invalidate(rec, httptest.NewRequest(http.MethodPost, "/admin/catalog/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cache.invalidations)
}
