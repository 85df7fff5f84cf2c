package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"horse.fit/catalog/internal/catalog"
	"horse.fit/catalog/internal/db"
	"horse.fit/catalog/internal/language"
	"horse.fit/catalog/internal/translation"
)

type fakeCatalog struct {
	products       map[int64]*db.Product
	categories     map[int64]*db.Category
	createdInputs  []catalog.ProductInput
	retranslateErr error
	createErr      error
	retranslated   []int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[int64]*db.Product{
			7: {
				ProductID:   7,
				Name:        "Shoe",
				Description: "Running shoe",
				Price:       decimal.RequireFromString("59.9"),
				SKU:         "SHOE-7",
				SourceLang:  "en",
				Translations: db.Translations{
					"en": {"name": "Shoe", "description": "Running shoe"},
					"fr": {"name": "Chaussure", "description": ""},
				},
			},
		},
		categories: map[int64]*db.Category{
			3: {
				CategoryID:  3,
				Name:        "Footwear",
				Slug:        "footwear",
				SourceLang:  "en",
				Translations: db.Translations{
					"en": {"name": "Footwear", "description": ""},
					"fr": {"name": "Chaussures", "description": ""},
				},
			},
		},
	}
}

func (f *fakeCatalog) Languages() []string { return []string{"en", "fr"} }

func (f *fakeCatalog) CreateProduct(_ context.Context, in catalog.ProductInput) (*db.Product, error) {
	f.createdInputs = append(f.createdInputs, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	product := &db.Product{
		ProductID:    int64(100 + len(f.createdInputs)),
		Name:         in.Name,
		Description:  in.Description,
		Price:        in.Price,
		SKU:          in.SKU,
		SourceLang:   "en",
		Translations: db.NewTranslations(f.Languages(), db.TranslatableFields),
	}
	f.products[product.ProductID] = product
	return product, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, productID int64) (*db.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return product, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, page catalog.Page) ([]db.Product, int64, error) {
	out := make([]db.Product, 0, len(f.products))
	for _, product := range f.products {
		out = append(out, *product)
	}
	if page.Offset >= len(out) {
		return []db.Product{}, int64(len(f.products)), nil
	}
	return out[page.Offset:], int64(len(f.products)), nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, productID int64, in catalog.ProductInput) (*db.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, db.ErrNotFound
	}
	product.Name = in.Name
	product.Price = in.Price
	return product, nil
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, productID int64) error {
	if _, ok := f.products[productID]; !ok {
		return db.ErrNotFound
	}
	delete(f.products, productID)
	return nil
}

func (f *fakeCatalog) RetranslateProduct(_ context.Context, productID int64) (*db.Product, catalog.RetranslateResult, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, catalog.RetranslateResult{}, db.ErrNotFound
	}
	if f.retranslateErr != nil {
		return nil, catalog.RetranslateResult{}, f.retranslateErr
	}
	f.retranslated = append(f.retranslated, productID)
	return product, catalog.RetranslateResult{
		Ref:   product.Ref(),
		Stats: translation.RunStats{Total: 4, Translated: 2, Skipped: 2},
	}, nil
}

func (f *fakeCatalog) CreateCategory(_ context.Context, in catalog.CategoryInput) (*db.Category, error) {
	if in.Slug == "taken" {
		return nil, db.ErrConflict
	}
	category := &db.Category{CategoryID: 50, Name: in.Name, Slug: catalog.Slugify(in.Name), SourceLang: "en"}
	f.categories[category.CategoryID] = category
	return category, nil
}

func (f *fakeCatalog) GetCategory(_ context.Context, categoryID int64) (*db.Category, error) {
	category, ok := f.categories[categoryID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return category, nil
}

func (f *fakeCatalog) ListCategories(context.Context, catalog.Page) ([]db.Category, int64, error) {
	out := make([]db.Category, 0, len(f.categories))
	for _, category := range f.categories {
		out = append(out, *category)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCatalog) UpdateCategory(_ context.Context, categoryID int64, in catalog.CategoryInput) (*db.Category, error) {
	category, ok := f.categories[categoryID]
	if !ok {
		return nil, db.ErrNotFound
	}
	category.Name = in.Name
	return category, nil
}

func (f *fakeCatalog) DeleteCategory(_ context.Context, categoryID int64) error {
	if _, ok := f.categories[categoryID]; !ok {
		return db.ErrNotFound
	}
	delete(f.categories, categoryID)
	return nil
}

func (f *fakeCatalog) RetranslateCategory(_ context.Context, categoryID int64) (*db.Category, catalog.RetranslateResult, error) {
	category, ok := f.categories[categoryID]
	if !ok {
		return nil, catalog.RetranslateResult{}, db.ErrNotFound
	}
	if f.retranslateErr != nil {
		return nil, catalog.RetranslateResult{}, f.retranslateErr
	}
	return category, catalog.RetranslateResult{Ref: category.Ref()}, nil
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

func newTestServer(service CatalogService, health HealthChecker) *Server {
	negotiator := language.NewNegotiator([]string{"en", "fr"}, "en")
	return NewServer(service, negotiator, health, zerolog.Nop(), Options{})
}

func doRequest(t *testing.T, s *Server, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
}

func TestGetProductNegotiatesLanguage(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeCatalog(), nil)
	rec, env := doRequest(t, s, http.MethodGet, "/api/products/7/", "", map[string]string{
		"Accept-Language": "fr-CA,en;q=0.8",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Language"); got != "fr" {
		t.Fatalf("expected Content-Language fr, got %q", got)
	}

	var product productView
	decodeData(t, env, &product)
	if product.Name != "Chaussure" {
		t.Fatalf("expected french name, got %q", product.Name)
	}
	if product.Description != "Running shoe" {
		t.Fatalf("expected empty french slot to fall back to base, got %q", product.Description)
	}
	if product.Language != "fr" || product.Price != "59.90" {
		t.Fatalf("unexpected product view: %+v", product)
	}
	if product.Base["name"] != "Shoe" || product.Translations.Get("fr", "name") != "Chaussure" {
		t.Fatalf("expected base and translations in the view: %+v", product)
	}
}

func TestMissingAcceptLanguageFallsBackToDefault(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeCatalog(), nil)
	rec, env := doRequest(t, s, http.MethodGet, "/api/products/7", "", nil)
	if got := rec.Header().Get("Content-Language"); got != "en" {
		t.Fatalf("expected Content-Language en, got %q", got)
	}
	var product productView
	decodeData(t, env, &product)
	if product.Name != "Shoe" {
		t.Fatalf("expected english name, got %q", product.Name)
	}
}

func TestListProductsIncludesLanguageMeta(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeCatalog(), nil)
	rec, env := doRequest(t, s, http.MethodGet, "/api/products/", "", map[string]string{"Accept-Language": "de, fr;q=0.5"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var data struct {
		Items []productView `json:"items"`
		Meta  struct {
			Language           string   `json:"language"`
			SupportedLanguages []string `json:"supported_languages"`
			TotalProducts      int64    `json:"total_products"`
		} `json:"meta"`
		Pagination map[string]any `json:"pagination"`
	}
	decodeData(t, env, &data)
	if data.Meta.Language != "fr" || data.Meta.TotalProducts != 1 {
		t.Fatalf("unexpected meta: %+v", data.Meta)
	}
	if len(data.Meta.SupportedLanguages) != 2 || data.Meta.SupportedLanguages[0] != "en" {
		t.Fatalf("unexpected supported languages: %v", data.Meta.SupportedLanguages)
	}
	if len(data.Items) != 1 || data.Items[0].Name != "Chaussure" {
		t.Fatalf("unexpected items: %+v", data.Items)
	}
	if data.Pagination["page_size"] != float64(defaultPageSize) {
		t.Fatalf("unexpected pagination: %v", data.Pagination)
	}
}

func TestListRejectsBadPageSize(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeCatalog(), nil)
	rec, env := doRequest(t, s, http.MethodGet, "/api/categories?page_size=1000", "", nil)
	if rec.Code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("expected 400 fail, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateProductValidatesBody(t *testing.T) {
	t.Parallel()

	fake := newFakeCatalog()
	s := newTestServer(fake, nil)

	rec, env := doRequest(t, s, http.MethodPost, "/api/products", `{"name":"Hat","sku":"HAT-1","price":-2}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var data struct {
		ValidationErrors map[string]string `json:"validation_errors"`
	}
	decodeData(t, env, &data)
	if _, ok := data.ValidationErrors["price"]; !ok {
		t.Fatalf("expected price validation error, got %v", data.ValidationErrors)
	}

	rec, _ = doRequest(t, s, http.MethodPost, "/api/products", `{"name":"Hat","sku":"HAT-1","price":2,"colour":"red"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown property to be rejected, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodPost, "/api/products", `{"name":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected malformed JSON to be rejected, got %d", rec.Code)
	}
	if len(fake.createdInputs) != 0 {
		t.Fatalf("service must not be called for invalid bodies")
	}
}

func TestCreateProductReturnsCreated(t *testing.T) {
	t.Parallel()

	fake := newFakeCatalog()
	s := newTestServer(fake, nil)

	rec, env := doRequest(t, s, http.MethodPost, "/api/products", `{"name":"Hat","description":"Wool hat","sku":"HAT-1","price":"19.5"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(fake.createdInputs) != 1 || !fake.createdInputs[0].Price.Equal(decimal.RequireFromString("19.5")) {
		t.Fatalf("unexpected service input: %+v", fake.createdInputs)
	}

	var product productView
	decodeData(t, env, &product)
	if product.Price != "19.50" || product.Translations.Get("fr", "name") != "" {
		t.Fatalf("unexpected created product: %+v", product)
	}
	if _, ok := product.Translations["fr"]["description"]; !ok {
		t.Fatalf("expected empty slots for every language: %+v", product.Translations)
	}
}

func TestCreateProductConflict(t *testing.T) {
	t.Parallel()

	fake := newFakeCatalog()
	fake.createErr = db.ErrConflict
	s := newTestServer(fake, nil)

	rec, env := doRequest(t, s, http.MethodPost, "/api/products", `{"name":"Hat","sku":"SHOE-7","price":1}`, nil)
	if rec.Code != http.StatusConflict || env.Status != "fail" {
		t.Fatalf("expected 409 fail, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestProductNotFoundAndBadID(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeCatalog(), nil)
	rec, env := doRequest(t, s, http.MethodGet, "/api/products/999", "", nil)
	if rec.Code != http.StatusNotFound || env.Message != "product not found" {
		t.Fatalf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doRequest(t, s, http.MethodGet, "/api/products/abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestRetranslateProduct(t *testing.T) {
	t.Parallel()

	fake := newFakeCatalog()
	s := newTestServer(fake, nil)
	rec, env := doRequest(t, s, http.MethodPost, "/api/products/7/retranslate/", "", map[string]string{"Accept-Language": "fr"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var data struct {
		Status    string              `json:"status"`
		ProductID int64               `json:"product_id"`
		Language  string              `json:"language"`
		Stats     translation.RunStats `json:"stats"`
	}
	decodeData(t, env, &data)
	if data.Status != "retranslation completed" || data.ProductID != 7 || data.Language != "fr" {
		t.Fatalf("unexpected retranslate body: %+v", data)
	}
	if data.Stats.Translated != 2 || len(fake.retranslated) != 1 {
		t.Fatalf("unexpected stats %+v / calls %v", data.Stats, fake.retranslated)
	}
}

func TestRetranslateGatewayFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		kind       error
		wantStatus int
		wantJSend  string
		wantReason string
	}{
		{name: "rate limited", kind: translation.ErrRateLimited, wantStatus: http.StatusServiceUnavailable, wantJSend: "error", wantReason: "rate_limited"},
		{name: "unavailable", kind: translation.ErrProviderUnavailable, wantStatus: http.StatusBadGateway, wantJSend: "error", wantReason: "unavailable"},
		{name: "unsupported", kind: translation.ErrUnsupportedLanguage, wantStatus: http.StatusUnprocessableEntity, wantJSend: "fail", wantReason: "unsupported_language"},
		{name: "rejected", kind: translation.ErrProviderRejected, wantStatus: http.StatusBadGateway, wantJSend: "error", wantReason: "rejected"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := newFakeCatalog()
			gwErr := &translation.GatewayError{Provider: "libretranslate", Kind: tc.kind, Err: errors.New("upstream said no")}
			fake.retranslateErr = errors.Join(errors.New("translate product:7 name to fr"), gwErr)
			s := newTestServer(fake, nil)

			rec, env := doRequest(t, s, http.MethodPost, "/api/products/7/retranslate", "", nil)
			if rec.Code != tc.wantStatus || env.Status != tc.wantJSend {
				t.Fatalf("expected %d/%s, got %d %s", tc.wantStatus, tc.wantJSend, rec.Code, rec.Body.String())
			}
			var data map[string]string
			decodeData(t, env, &data)
			if data["reason"] != tc.wantReason || data["provider"] != "libretranslate" {
				t.Fatalf("unexpected error data: %v", data)
			}
			if strings.Contains(rec.Body.String(), "upstream said no") {
				t.Fatalf("provider details must not leak into the response: %s", rec.Body.String())
			}
		})
	}
}

func TestCategoryEndpoints(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeCatalog(), nil)

	rec, env := doRequest(t, s, http.MethodGet, "/api/categories", "", map[string]string{"Accept-Language": "fr"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Items []categoryView `json:"items"`
		Meta  map[string]any `json:"meta"`
	}
	decodeData(t, env, &list)
	if list.Meta["total_categories"] != float64(1) || len(list.Items) != 1 || list.Items[0].Name != "Chaussures" {
		t.Fatalf("unexpected category list: %+v", list)
	}

	rec, _ = doRequest(t, s, http.MethodPost, "/api/categories", `{"name":"Hats","slug":"Not A Slug"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid slug to be rejected, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodPost, "/api/categories", `{"name":"Hats","slug":"taken"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	rec, env = doRequest(t, s, http.MethodPost, "/api/categories", `{"name":"Summer Hats"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created categoryView
	decodeData(t, env, &created)
	if created.Slug != "summer-hats" {
		t.Fatalf("unexpected slug %q", created.Slug)
	}

	rec, env = doRequest(t, s, http.MethodPost, "/api/categories/3/retranslate", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var retranslated map[string]any
	decodeData(t, env, &retranslated)
	if retranslated["category_id"] != float64(3) {
		t.Fatalf("unexpected retranslate body: %v", retranslated)
	}

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/categories/3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodDelete, "/api/categories/3", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeCatalog(), nil)
	_, env := doRequest(t, s, http.MethodGet, "/api/languages", "", map[string]string{"Accept-Language": "fr"})

	var data struct {
		Items    []language.Option `json:"items"`
		Default  string            `json:"default"`
		Language string            `json:"language"`
	}
	decodeData(t, env, &data)
	if len(data.Items) != 2 || data.Items[1].Label != "French" || !data.Items[0].Default {
		t.Fatalf("unexpected languages: %+v", data.Items)
	}
	if data.Default != "en" || data.Language != "fr" {
		t.Fatalf("unexpected default/language: %+v", data)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec, env := doRequest(t, newTestServer(newFakeCatalog(), fakePinger{}), http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("expected healthy response, got %d %s", rec.Code, rec.Body.String())
	}

	rec, env = doRequest(t, newTestServer(newFakeCatalog(), fakePinger{err: errors.New("down")}), http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable || env.Status != "error" {
		t.Fatalf("expected 503 error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRouteIsJSendFail(t *testing.T) {
	t.Parallel()

	rec, env := doRequest(t, newTestServer(newFakeCatalog(), nil), http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound || env.Status != "fail" {
		t.Fatalf("expected 404 fail, got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec, _ := doRequest(t, newTestServer(newFakeCatalog(), nil), http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}
