package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"myshop/internal/authz"
	"myshop/internal/cache"
	"myshop/internal/events"
	"myshop/internal/metrics"
	"myshop/internal/models"
	"myshop/internal/repositories"
	"myshop/internal/validators"
	pkgerrors "myshop/pkg/errors"
	"myshop/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize          = 10
	defaultLowStockThreshold = 10
)

// ImageStore persists uploaded image blobs.
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(name string) error
}

// CatalogDeps wires the collaborators of CatalogService. Repo and Cache are required.
type CatalogDeps struct {
	Repo      repositories.ProductRepository
	Cache     cache.Cache
	Images    ImageStore
	Policy    authz.Policy
	Validator *validators.ProductValidator
	Events    *events.Dispatcher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	CacheTTL          time.Duration
	PageSize          int
	LowStockThreshold int
}

// CatalogService orchestrates validation, authorization, persistence and cache
// invalidation for products.
type CatalogService struct {
	repo      repositories.ProductRepository
	cache     cache.Cache
	images    ImageStore
	policy    authz.Policy
	validator *validators.ProductValidator
	events    *events.Dispatcher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	cacheTTL          time.Duration
	pageSize          int
	lowStockThreshold int
}

// NewCatalogService creates a CatalogService, filling unset optional deps with defaults.
func NewCatalogService(deps CatalogDeps) *CatalogService {
	s := &CatalogService{
		repo:              deps.Repo,
		cache:             deps.Cache,
		images:            deps.Images,
		policy:            deps.Policy,
		validator:         deps.Validator,
		events:            deps.Events,
		metrics:           deps.Metrics,
		log:               deps.Logger,
		cacheTTL:          deps.CacheTTL,
		pageSize:          deps.PageSize,
		lowStockThreshold: deps.LowStockThreshold,
	}
	if s.policy == nil {
		s.policy = authz.OwnerPolicy{}
	}
	if s.validator == nil {
		s.validator = validators.NewProductValidator()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = cache.DefaultTTL
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.lowStockThreshold <= 0 {
		s.lowStockThreshold = defaultLowStockThreshold
	}
	return s
}

// ProductInput carries client-supplied product fields. Nil means "not supplied".
type ProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	SKU         *string
}

// ListRequest is a listing query. Unfiltered marks the bare "all products" view,
// the only listing served from the cache.
type ListRequest struct {
	Query      repositories.ProductQuery
	Unfiltered bool
}

// ListResult is one page plus whether it came from the cache.
type ListResult struct {
	Page   repositories.ProductPage
	Cached bool
}

// StatisticsResult is the aggregate view plus whether it came from the cache.
type StatisticsResult struct {
	Stats  models.ProductStatistics
	Cached bool
}

// ImageUpload is a validated-on-arrival image attachment request.
type ImageUpload struct {
	File      validators.ImageFile
	IsPrimary bool
	Order     int
}

// BareListQuery is the query the unfiltered listing is computed with.
func (s *CatalogService) BareListQuery() repositories.ProductQuery {
	return repositories.ProductQuery{
		Ordering: repositories.DefaultOrdering,
		Page:     repositories.PageRequest{Page: 1, PageSize: s.pageSize},
	}
}

// List returns a page of products. Only the unfiltered view is read through the cache.
func (s *CatalogService) List(ctx context.Context, req ListRequest) (ListResult, error) {
	if !req.Unfiltered {
		page, err := s.repo.List(ctx, req.Query)
		if err != nil {
			return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list products")
		}
		return ListResult{Page: page}, nil
	}

	var page repositories.ProductPage
	cached, err := s.readThrough(ctx, cache.KeyProductList, &page, func() (any, error) {
		return s.repo.List(ctx, s.BareListQuery())
	})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Page: page, Cached: cached}, nil
}

// Statistics returns count, average price and total stock, read through the cache.
func (s *CatalogService) Statistics(ctx context.Context) (StatisticsResult, error) {
	var stats models.ProductStatistics
	cached, err := s.readThrough(ctx, cache.KeyProductStatistics, &stats, func() (any, error) {
		return s.repo.Statistics(ctx)
	})
	if err != nil {
		return StatisticsResult{}, err
	}
	return StatisticsResult{Stats: stats, Cached: cached}, nil
}

// readThrough decodes the cached value of key into dst, or computes, stores and
// decodes a fresh one. It reports whether the value came from the cache.
func (s *CatalogService) readThrough(ctx context.Context, key string, dst any, compute func() (any, error)) (bool, error) {
	log := logger.FromContext(ctx, s.log)

	raw, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cache unavailable")
	}
	if hit {
		if err := json.Unmarshal(raw, dst); err == nil {
			s.metrics.CacheLookup(key, true)
			return true, nil
		}
		log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}
	s.metrics.CacheLookup(key, false)

	value, err := compute()
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("failed to compute %s", key))
	}
	raw, err = json.Marshal(value)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("failed to encode %s", key))
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to populate cache")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("failed to decode %s", key))
	}
	return false, nil
}

// Retrieve returns one product as seen by identity, which may be nil.
func (s *CatalogService) Retrieve(ctx context.Context, id string, identity *authz.Identity) (*models.Product, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(identity, authz.ActionRetrieve, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Create validates input and stores a product owned by identity.
func (s *CatalogService) Create(ctx context.Context, input ProductInput, identity *authz.Identity) (*models.Product, error) {
	if err := s.policy.Authorize(identity, authz.ActionCreate, nil); err != nil {
		return nil, err
	}

	draft := normalize(input)
	if errs := s.validator.Validate(draft); len(errs) > 0 {
		return nil, validationError(errs)
	}

	product := models.Product{OwnerID: identity.UserID}
	apply(&product, draft)
	if err := s.repo.Create(ctx, &product); err != nil {
		return nil, storeError(err, "failed to create product")
	}

	s.invalidate(ctx)
	s.publish(ctx, events.ProductCreated, &product, identity)
	return s.find(ctx, product.ID)
}

// Update replaces name, description, price and stock. All four are required.
func (s *CatalogService) Update(ctx context.Context, id string, input ProductInput, identity *authz.Identity) (*models.Product, error) {
	return s.update(ctx, id, input, identity, false)
}

// PartialUpdate changes only the supplied fields.
func (s *CatalogService) PartialUpdate(ctx context.Context, id string, input ProductInput, identity *authz.Identity) (*models.Product, error) {
	return s.update(ctx, id, input, identity, true)
}

func (s *CatalogService) update(ctx context.Context, id string, input ProductInput, identity *authz.Identity, partial bool) (*models.Product, error) {
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(identity, authz.ActionUpdate, existing); err != nil {
		return nil, err
	}

	draft := normalize(input)
	var errs validators.Errors
	if partial {
		draft = merge(draft, existing)
	} else if draft.Description == nil {
		errs = append(errs, validators.FieldError{Field: "description", Code: validators.CodeRequired, Message: "This field is required."})
	}
	for _, fe := range s.validator.Validate(draft) {
		// cross-field rules only count once every field is present and valid
		if len(errs) > 0 && fe.Code == validators.CodeBusinessRule {
			continue
		}
		errs = append(errs, fe)
	}
	if len(errs) > 0 {
		return nil, validationError(errs)
	}

	updated := *existing
	apply(&updated, draft)
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, storeError(err, "failed to update product")
	}

	s.invalidate(ctx)
	s.publish(ctx, events.ProductUpdated, &updated, identity)
	return s.find(ctx, id)
}

// Delete removes a product, its images and their blobs.
func (s *CatalogService) Delete(ctx context.Context, id string, identity *authz.Identity) error {
	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(identity, authz.ActionDelete, existing); err != nil {
		return err
	}

	images, err := s.repo.ListImages(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list product images")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete product")
	}

	s.invalidate(ctx)
	s.removeBlobs(ctx, images)
	s.publish(ctx, events.ProductDeleted, existing, identity)
	return nil
}

// UploadImage attaches an image to an existing product. The cached views do not
// include images, so nothing is invalidated.
func (s *CatalogService) UploadImage(ctx context.Context, id string, upload ImageUpload, identity *authz.Identity) (*models.ProductImage, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(identity, authz.ActionUploadImage, product); err != nil {
		return nil, err
	}
	if errs := validators.ValidateImage(upload.File); len(errs) > 0 {
		return nil, validationError(errs)
	}
	if s.images == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "image storage is not configured")
	}

	path, err := s.images.Save(ctx, upload.File.Filename, bytes.NewReader(upload.File.Data))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store image")
	}
	image := models.ProductImage{
		ProductID: product.ID,
		Image:     path,
		IsPrimary: upload.IsPrimary,
		Order:     upload.Order,
	}
	if err := s.repo.AddImage(ctx, &image); err != nil {
		if delErr := s.images.Delete(path); delErr != nil {
			logger.FromContext(ctx, s.log).Error().Err(delErr).Str("path", path).Msg("failed to remove orphaned image")
		}
		return nil, storeError(err, "failed to attach image")
	}

	e := snapshot(events.ProductImageUploaded, product, identity)
	e.ImageID = image.ID
	s.events.Publish(ctx, e)
	return &image, nil
}

func (s *CatalogService) find(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load product")
	}
	return product, nil
}

// invalidate drops both cached views. Failures are logged and counted, never returned.
func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.CatalogKeys()...); err != nil {
		s.metrics.InvalidationFailed()
		logger.FromContext(ctx, s.log).Error().Err(err).Strs("keys", cache.CatalogKeys()).Msg("cache invalidation failed")
	}
}

func (s *CatalogService) removeBlobs(ctx context.Context, images []models.ProductImage) {
	if s.images == nil {
		return
	}
	for _, img := range images {
		if err := s.images.Delete(img.Image); err != nil {
			logger.FromContext(ctx, s.log).Warn().Err(err).Str("path", img.Image).Msg("failed to remove image blob")
		}
	}
}

func (s *CatalogService) publish(ctx context.Context, t events.Type, product *models.Product, identity *authz.Identity) {
	s.events.Publish(ctx, snapshot(t, product, identity))
	if t != events.ProductDeleted && product.Stock < s.lowStockThreshold {
		s.events.Publish(ctx, snapshot(events.ProductLowStock, product, identity))
	}
}

func snapshot(t events.Type, product *models.Product, identity *authz.Identity) events.Event {
	e := events.Event{
		Type:      t,
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		Price:     product.Price,
		Stock:     product.Stock,
		OwnerID:   product.OwnerID,
	}
	if identity != nil {
		e.ActorID = identity.UserID
	}
	return e
}

// normalize trims surrounding whitespace from the text fields.
func normalize(input ProductInput) validators.ProductDraft {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	return validators.ProductDraft{
		Name:        trim(input.Name),
		Description: trim(input.Description),
		Price:       input.Price,
		Stock:       input.Stock,
		SKU:         trim(input.SKU),
	}
}

// merge fills unsupplied draft fields from the stored product.
func merge(draft validators.ProductDraft, existing *models.Product) validators.ProductDraft {
	if draft.Name == nil {
		draft.Name = &existing.Name
	}
	if draft.Description == nil {
		draft.Description = &existing.Description
	}
	if draft.Price == nil {
		draft.Price = &existing.Price
	}
	if draft.Stock == nil {
		draft.Stock = &existing.Stock
	}
	if draft.SKU == nil {
		draft.SKU = &existing.SKU
	}
	return draft
}

// apply copies a validated draft onto product.
func apply(product *models.Product, draft validators.ProductDraft) {
	product.Name = *draft.Name
	if draft.Description != nil {
		product.Description = *draft.Description
	}
	product.Price = *draft.Price
	product.Stock = *draft.Stock
	// a blank sku keeps the stored one, or gets generated on create
	if draft.SKU != nil && *draft.SKU != "" {
		product.SKU = *draft.SKU
	}
}

func validationError(errs validators.Errors) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Invalid data provided").WithDetails(errs)
}

func storeError(err error, message string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "Not found.")
	case errors.Is(err, repositories.ErrDuplicateSKU):
		return validationError(validators.Errors{{
			Field:   "sku",
			Code:    validators.CodeInvalid,
			Message: "product with this sku already exists.",
		}})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}
