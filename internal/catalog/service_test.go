package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horse.fit/catalog/internal/config"
	"horse.fit/catalog/internal/db"
	"horse.fit/catalog/internal/outbox"
	"horse.fit/catalog/internal/translation"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fail  error
	tag   string

	// during runs once inside the next call, while the caller waits on the provider.
	during func()
}

func (p *fakeProvider) Translate(_ context.Context, req translation.TranslateRequest) (*translation.TranslateResponse, error) {
	p.mu.Lock()
	during := p.during
	p.during = nil
	p.mu.Unlock()
	if during != nil {
		during()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail != nil {
		return nil, p.fail
	}
	tag := p.tag
	if tag == "" {
		tag = "v1"
	}
	return &translation.TranslateResponse{
		Text:         req.Text + " (" + req.TargetLang + " " + tag + ")",
		SourceLang:   req.SourceLang,
		TargetLang:   req.TargetLang,
		ProviderName: "fake",
	}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) SupportedLanguages() []string { return []string{"en", "fr", "de"} }

func (p *fakeProvider) set(tag string, fail error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tag = tag
	p.fail = fail
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixedDetector string

func (d fixedDetector) Detect(string) string { return string(d) }

type harness struct {
	store    *db.Store
	provider *fakeProvider
	service  *Service
	notified int
}

func newHarness(t *testing.T, detector Detector) *harness {
	t.Helper()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, &config.Config{
		DatabaseURL: "sqlite::memory:",
		LogLevel:    "silent",
		Environment: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, pool.Migrate(ctx))

	h := &harness{store: pool.Store(), provider: &fakeProvider{}}
	gateway := translation.NewGateway(h.provider, translation.GatewayOptions{
		BreakerFailures: 100,
		Logger:          zerolog.Nop(),
	})
	manager := translation.NewManager(gateway, h.store, translation.ManagerOptions{
		Languages:    []string{"en", "fr"},
		BaseLanguage: "en",
		Logger:       zerolog.Nop(),
	})
	h.service, err = NewService(h.store, manager, Options{
		BaseLanguage: "en",
		Detector:     detector,
		Notify:       func() { h.notified++ },
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return h
}

func shoe(sku string) ProductInput {
	return ProductInput{
		Name:        "Shoe",
		Description: "Running shoe",
		Price:       decimal.RequireFromString("59.90"),
		SKU:         sku,
		SourceLang:  "en",
	}
}

// drain runs every due job through the service's handler, like one outbox sweep.
func (h *harness) drain(t *testing.T) []error {
	t.Helper()
	ctx := context.Background()
	jobs, err := h.store.ClaimDueJobs(ctx, time.Now().UTC().Add(time.Second), time.Minute, 100)
	require.NoError(t, err)
	errs := make([]error, 0, len(jobs))
	for _, job := range jobs {
		runErr := h.service.RunTranslationJob(ctx, job)
		if runErr == nil {
			require.NoError(t, h.store.CompleteJob(ctx, job.JobID, job.Attempts+1))
		} else {
			require.NoError(t, h.store.KillJob(ctx, job.JobID, job.Attempts+1, runErr.Error()))
		}
		errs = append(errs, runErr)
	}
	return errs
}

func TestCreateProductEnqueuesJobAndNotifiesAfterCommit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	product, err := h.service.CreateProduct(ctx, shoe("SKU-1"))
	require.NoError(t, err)
	assert.NotZero(t, product.ProductID)
	assert.Equal(t, 1, h.notified)
	assert.Equal(t, "", product.Translations.Get("fr", "name"), "slots exist but are empty before the job runs")
	assert.Contains(t, product.Translations["fr"], "description")

	jobs, err := h.store.ListJobsForEntity(ctx, product.Ref())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, db.JobStatusPending, jobs[0].Status)
	assert.Equal(t, db.TranslatableFields, jobs[0].FieldList())
	assert.Zero(t, h.provider.callCount(), "creation never calls the provider inline")
}

func TestFailedCreateNeverSchedulesTranslation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.service.CreateProduct(ctx, shoe("SKU-1"))
	require.NoError(t, err)

	_, err = h.service.CreateProduct(ctx, shoe("SKU-1"))
	require.ErrorIs(t, err, db.ErrConflict)
	assert.Equal(t, 1, h.notified, "rolled back create must not notify the worker")

	counts, err := h.store.JobCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[db.JobStatusPending])

	errs := h.drain(t)
	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
	assert.Equal(t, 2, h.provider.callCount(), "only the committed product is translated")
}

func TestTranslationJobFillsSlots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	product, err := h.service.CreateProduct(ctx, shoe("SKU-1"))
	require.NoError(t, err)

	errs := h.drain(t)
	require.Len(t, errs, 1)
	require.NoError(t, errs[0])

	slots, err := h.store.LoadTranslations(ctx, product.Ref())
	require.NoError(t, err)
	assert.Equal(t, "Shoe", slots.Get("en", "name"), "source language slot copies the base value")
	assert.Equal(t, "Shoe (fr v1)", slots.Get("fr", "name"))
	assert.Equal(t, "Running shoe (fr v1)", slots.Get("fr", "description"))
}

func TestTranslationJobForDeletedEntityIsPermanent(t *testing.T) {
	h := newHarness(t, nil)

	err := h.service.RunTranslationJob(context.Background(), db.TranslationJob{
		EntityKind: string(db.EntityProduct),
		EntityID:   404,
		Fields:     "name,description",
	})
	require.Error(t, err)
	assert.True(t, outbox.IsPermanent(err))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestTranslationJobRacingDeleteLeavesNoSlots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	created, err := h.service.CreateProduct(ctx, shoe("SKU-RACE"))
	require.NoError(t, err)
	jobs, err := h.store.ClaimDueJobs(ctx, time.Now().UTC().Add(time.Second), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	h.provider.mu.Lock()
	h.provider.during = func() {
		require.NoError(t, h.store.DeleteProduct(ctx, created.ProductID))
	}
	h.provider.mu.Unlock()

	err = h.service.RunTranslationJob(ctx, jobs[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.True(t, outbox.IsPermanent(err))

	slots, err := h.store.LoadTranslations(ctx, created.Ref())
	require.NoError(t, err)
	assert.Empty(t, slots, "a deleted product must not get slots back")
}

func TestTranslationJobForUnknownKindIsPermanent(t *testing.T) {
	h := newHarness(t, nil)

	err := h.service.RunTranslationJob(context.Background(), db.TranslationJob{EntityKind: "brand", EntityID: 1})
	require.Error(t, err)
	assert.True(t, outbox.IsPermanent(err))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTranslateEntity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	created, err := h.service.CreateCategory(ctx, CategoryInput{Name: "Footwear", Description: "Shoes and boots"})
	require.NoError(t, err)

	result, err := h.service.TranslateEntity(ctx, created.Ref(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.Translated)

	result, err = h.service.TranslateEntity(ctx, created.Ref(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stats.Translated, "populated slots are kept")

	h.provider.set("v2", nil)
	result, err = h.service.TranslateEntity(ctx, created.Ref(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.Translated)

	_, err = h.service.TranslateEntity(ctx, db.EntityRef{Kind: db.EntityProduct, ID: 99}, false)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestTranslationJobProviderOutageIsRetried(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.service.CreateCategory(ctx, CategoryInput{Name: "Footwear", Description: "Shoes and boots", SourceLang: "en"})
	require.NoError(t, err)
	h.provider.set("", errors.New("connection refused"))

	errs := h.drain(t)
	require.Len(t, errs, 1)
	require.Error(t, errs[0])
	assert.False(t, outbox.IsPermanent(errs[0]))
	assert.ErrorIs(t, errs[0], translation.ErrProviderUnavailable)
}

func TestGetProductEnsuresTranslationsOnRead(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	created, err := h.service.CreateProduct(ctx, shoe("SKU-1"))
	require.NoError(t, err)

	product, err := h.service.GetProduct(ctx, created.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "Shoe", product.Translations.Get("en", "name"))
	assert.Equal(t, "Shoe (fr v1)", product.Translations.Get("fr", "name"))
	assert.Equal(t, 2, h.provider.callCount())

	// A second read finds the slots populated and makes no provider call.
	h.provider.set("v2", nil)
	product, err = h.service.GetProduct(ctx, created.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "Shoe (fr v1)", product.Translations.Get("fr", "name"))
	assert.Equal(t, 2, h.provider.callCount())
}

func TestRetranslateOverwritesSlots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	created, err := h.service.CreateProduct(ctx, shoe("SKU-1"))
	require.NoError(t, err)
	h.drain(t)

	h.provider.set("v2", nil)
	product, result, err := h.service.RetranslateProduct(ctx, created.ProductID)
	require.NoError(t, err)
	assert.Equal(t, created.Ref(), result.Ref)
	assert.Equal(t, 2, result.Stats.Translated)
	assert.Equal(t, "Shoe (fr v2)", product.Translations.Get("fr", "name"))

	slots, err := h.store.LoadTranslations(ctx, created.Ref())
	require.NoError(t, err)
	assert.Equal(t, "Running shoe (fr v2)", slots.Get("fr", "description"))
}

func TestRetranslateFailureLeavesStoredSlots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	created, err := h.service.CreateCategory(ctx, CategoryInput{Name: "Footwear", Description: "Shoes and boots"})
	require.NoError(t, err)
	h.drain(t)

	h.provider.set("v2", errors.New("upstream timeout"))
	_, _, err = h.service.RetranslateCategory(ctx, created.CategoryID)
	require.Error(t, err)
	assert.ErrorIs(t, err, translation.ErrGateway)

	slots, err := h.store.LoadTranslations(ctx, created.Ref())
	require.NoError(t, err)
	assert.Equal(t, "Footwear (fr v1)", slots.Get("fr", "name"))
	assert.Equal(t, "Shoes and boots (fr v1)", slots.Get("fr", "description"))
}

func TestCreateDetectsSourceLanguage(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, fixedDetector("fr"))
	in := shoe("SKU-1")
	in.SourceLang = ""
	product, err := h.service.CreateProduct(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "fr", product.SourceLang)

	h = newHarness(t, fixedDetector(""))
	product, err = h.service.CreateProduct(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "en", product.SourceLang, "falls back to the base language")

	in.SourceLang = "not a tag"
	_, err = h.service.CreateProduct(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProductInputValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*ProductInput)
		want   string
	}{
		{name: "missing name", mutate: func(in *ProductInput) { in.Name = "  " }, want: "name is required"},
		{name: "missing sku", mutate: func(in *ProductInput) { in.SKU = "" }, want: "sku is required"},
		{name: "negative price", mutate: func(in *ProductInput) { in.Price = decimal.RequireFromString("-1") }, want: "not be negative"},
		{name: "too precise", mutate: func(in *ProductInput) { in.Price = decimal.RequireFromString("1.999") }, want: "two decimal places"},
		{name: "too large", mutate: func(in *ProductInput) { in.Price = decimal.RequireFromString("100000000") }, want: "below"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := shoe("SKU-1")
			tc.mutate(&in)
			_, err := in.normalize()
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	in := shoe(" SKU-1 ")
	in.Price = decimal.RequireFromString("19.90")
	normalized, err := in.normalize()
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", normalized.SKU)
}

func TestUpdateDoesNotScheduleTranslation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	created, err := h.service.CreateCategory(ctx, CategoryInput{Name: "Footwear"})
	require.NoError(t, err)
	assert.Equal(t, "footwear", created.Slug)

	updated, err := h.service.UpdateCategory(ctx, created.CategoryID, CategoryInput{Name: "Chaussures d'été", SourceLang: "FR"})
	require.NoError(t, err)
	assert.Equal(t, "chaussures-dete", updated.Slug)
	assert.Equal(t, "fr", updated.SourceLang)
	assert.Equal(t, 1, h.notified)

	jobs, err := h.store.ListJobsForEntity(ctx, created.Ref())
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	_, err = h.service.UpdateCategory(ctx, 999, CategoryInput{Name: "Ghost"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListProductsFillsEmptySlots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	for _, sku := range []string{"A", "B", "C"} {
		_, err := h.service.CreateProduct(ctx, shoe(sku))
		require.NoError(t, err)
	}

	products, total, err := h.service.ListProducts(ctx, Page{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, products, 1)
	assert.Equal(t, "B", products[0].SKU)
	assert.Equal(t, map[string]string{"name": "", "description": ""}, products[0].Translations["fr"])
	assert.Zero(t, h.provider.callCount(), "listing never translates")
}

func TestDeleteProductRemovesJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	created, err := h.service.CreateProduct(ctx, shoe("SKU-1"))
	require.NoError(t, err)
	require.NoError(t, h.service.DeleteProduct(ctx, created.ProductID))

	_, err = h.service.GetProduct(ctx, created.ProductID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Empty(t, h.drain(t))
	assert.ErrorIs(t, h.service.DeleteProduct(ctx, created.ProductID), db.ErrNotFound)
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Footwear":            "footwear",
		"  Home & Garden  ":   "home-garden",
		"Café crème":          "cafe-creme",
		"summer_sale 2026":    "summer-sale-2026",
		"---":                 "",
		"Über   große Größen": "uber-groe-groen",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), "input %q", in)
		if want != "" {
			assert.True(t, IsValidSlug(want))
		}
	}
	assert.False(t, IsValidSlug("Bad Slug"))
	assert.False(t, IsValidSlug("trailing-"))
	assert.False(t, strings.Contains(Slugify("a -- b"), "--"))
}
