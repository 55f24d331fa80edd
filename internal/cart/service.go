package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/pricing"
	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const bundleRemovalConcurrency = 4

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart operations scoped to a browsing session.
type Service interface {
	GetOrCreate(ctx context.Context, sessionID string) (*models.CartRecord, error)
	AddLine(ctx context.Context, sessionID string, input AddLineInput) (*models.CartRecord, error)
	AddBundle(ctx context.Context, sessionID, bundleID string) (*models.CartRecord, error)
	UpdateQuantity(ctx context.Context, sessionID string, lineID uuid.UUID, quantity int) (*models.CartRecord, error)
	RemoveLine(ctx context.Context, sessionID string, lineID uuid.UUID) (*models.CartRecord, error)
	RemoveBundle(ctx context.Context, sessionID, bundleGroupID string) (*BundleRemoval, error)
	MarkSubmitted(ctx context.Context, cartID uuid.UUID, orderID string) error
	StartNew(ctx context.Context, sessionID string) (*models.CartRecord, error)
	DeleteExpired(ctx context.Context, limit int) (int64, error)
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog catalog.Client
	ttl     time.Duration
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, catalogClient catalog.Client, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalogClient == nil {
		return nil, fmt.Errorf("catalog client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cart ttl must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalogClient,
		ttl:     ttl,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// AddLineInput selects a catalog unit to add to the cart.
type AddLineInput struct {
	UnitID   string
	Quantity int
}

// BundleRemoval reports the outcome of removing a bundle member by member. Cart always
// reflects the persisted state after every removal settled.
type BundleRemoval struct {
	Cart    *models.CartRecord
	Removed []uuid.UUID
	Failed  []uuid.UUID
}

// GetOrCreate returns the session's current cart, replacing an expired one.
func (s *service) GetOrCreate(ctx context.Context, sessionID string) (*models.CartRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	record, err := s.repo.FindLatestBySession(ctx, sessionID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.create(ctx, s.repo, sessionID)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if record.Expired(s.now()) {
		s.logg.Info(s.logg.WithCartID(ctx, record.ID.String()), "cart expired; starting a new cart")
		return s.create(ctx, s.repo, sessionID)
	}
	return record, nil
}

// StartNew opens a fresh cart with a new submission nonce for the session.
func (s *service) StartNew(ctx context.Context, sessionID string) (*models.CartRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return s.create(ctx, s.repo, sessionID)
}

// AddLine adds a unit, capturing the best active promotion as the line's override price.
// An unbundled line for the same unit and promotion is merged by quantity.
func (s *service) AddLine(ctx context.Context, sessionID string, input AddLineInput) (*models.CartRecord, error) {
	unitID := strings.TrimSpace(input.UnitID)
	if unitID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	current, err := s.mutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unit, err := s.catalog.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	line := lineFromUnit(*unit, input.Quantity)

	promos, err := s.catalog.ActivePromotions(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "unit_id", unitID), "promotions unavailable; using catalog price")
	} else if promo, price, ok := pricing.BestPromotion(*unit, promos, s.now()); ok {
		line.UnitPrice = &price
		line.PromotionID = &promo.ID
	}

	for _, existing := range current.Lines {
		if existing.BundleGroupID == nil && existing.UnitID == line.UnitID && samePromotion(existing.PromotionID, line.PromotionID) {
			return s.UpdateQuantity(ctx, sessionID, existing.ID, existing.Quantity+input.Quantity)
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).AppendLines(ctx, current.ID, []models.CartLine{line})
	})
	if err != nil {
		return nil, mapWriteError(err, "add cart line")
	}
	return s.reload(ctx, current.ID)
}

// AddBundle adds every member of a catalog bundle under one new bundle group id, in one
// transaction. Members carry the bundle price as their override.
func (s *service) AddBundle(ctx context.Context, sessionID, bundleID string) (*models.CartRecord, error) {
	bundleID = strings.TrimSpace(bundleID)
	if bundleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id is required")
	}
	current, err := s.mutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	bundle, err := s.catalog.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if len(bundle.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle has no items")
	}

	units := make([]*commerce.Unit, len(bundle.Items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range bundle.Items {
		g.Go(func() error {
			unit, err := s.catalog.GetUnit(gctx, item.UnitID)
			if err != nil {
				return err
			}
			units[i] = unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	groupID := uuid.NewString()
	lines := make([]models.CartLine, 0, len(bundle.Items))
	for i, item := range bundle.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		line := lineFromUnit(*units[i], qty)
		price := max(item.Price, 0)
		line.UnitPrice = &price
		line.BundleGroupID = &groupID
		lines = append(lines, line)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).AppendLines(ctx, current.ID, lines)
	})
	if err != nil {
		return nil, mapWriteError(err, "add bundle")
	}
	return s.reload(ctx, current.ID)
}

func (s *service) UpdateQuantity(ctx context.Context, sessionID string, lineID uuid.UUID, quantity int) (*models.CartRecord, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	current, err := s.mutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := findLine(current, lineID); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if err := s.repo.UpdateLineQuantity(ctx, current.ID, lineID, quantity); err != nil {
		return nil, mapWriteError(err, "update cart line")
	}
	return s.reload(ctx, current.ID)
}

// RemoveLine deletes an unbundled line. Bundle members are only removed with their group.
func (s *service) RemoveLine(ctx context.Context, sessionID string, lineID uuid.UUID) (*models.CartRecord, error) {
	current, err := s.mutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	line, ok := findLine(current, lineID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if line.BundleGroupID != nil && *line.BundleGroupID != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle lines must be removed together").
			WithDetails(map[string]any{"bundle_group_id": *line.BundleGroupID})
	}
	if err := s.repo.DeleteLine(ctx, current.ID, lineID); err != nil {
		return nil, mapWriteError(err, "remove cart line")
	}
	return s.reload(ctx, current.ID)
}

// RemoveBundle issues one removal per member concurrently and waits for all of them to
// settle. The returned cart is reloaded so partial failures are reflected; the error
// aggregates every failed removal.
func (s *service) RemoveBundle(ctx context.Context, sessionID, bundleGroupID string) (*BundleRemoval, error) {
	bundleGroupID = strings.TrimSpace(bundleGroupID)
	if bundleGroupID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle group id is required")
	}
	current, err := s.mutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var members []models.CartLine
	for _, line := range current.Lines {
		if line.BundleGroupID != nil && *line.BundleGroupID == bundleGroupID {
			members = append(members, line)
		}
	}
	if len(members) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found in cart")
	}

	var (
		mu      sync.Mutex
		result  = &BundleRemoval{}
		combine error
	)
	var g errgroup.Group
	g.SetLimit(bundleRemovalConcurrency)
	for _, member := range members {
		g.Go(func() error {
			err := s.repo.DeleteLine(ctx, current.ID, member.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, member.ID)
				combine = multierr.Append(combine, fmt.Errorf("line %s: %w", member.ID, err))
				return nil
			}
			result.Removed = append(result.Removed, member.ID)
			return nil
		})
	}
	_ = g.Wait()

	reloaded, reloadErr := s.reload(ctx, current.ID)
	if reloadErr != nil {
		return nil, multierr.Append(combine, reloadErr)
	}
	result.Cart = reloaded

	if combine != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"cart_id":         current.ID.String(),
			"bundle_group_id": bundleGroupID,
			"failed":          len(result.Failed),
		})
		s.logg.Error(logCtx, "bundle removal partially failed", combine)
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, combine, "some bundle lines could not be removed").
			WithDetails(map[string]any{"failed_line_ids": result.Failed})
	}
	return result, nil
}

// MarkSubmitted records the order created from the cart. Marking again with the same
// order id is a no-op.
func (s *service) MarkSubmitted(ctx context.Context, cartID uuid.UUID, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	err := s.repo.MarkSubmitted(ctx, cartID, orderID, s.now())
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotMutable) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart submitted")
	}
	record, loadErr := s.repo.FindByID(ctx, cartID)
	if loadErr != nil {
		if errors.Is(loadErr, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "load cart")
	}
	if record.SubmittedOrderID != nil && *record.SubmittedOrderID == orderID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cart already submitted")
}

func (s *service) DeleteExpired(ctx context.Context, limit int) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now(), limit)
}

func (s *service) mutable(ctx context.Context, sessionID string) (*models.CartRecord, error) {
	current, err := s.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.IsSubmitted {
		return nil, submittedError(current)
	}
	return current, nil
}

func (s *service) create(ctx context.Context, repo CartRepository, sessionID string) (*models.CartRecord, error) {
	record := &models.CartRecord{
		ID:              uuid.New(),
		SessionID:       sessionID,
		SubmissionNonce: uuid.NewString(),
		ExpiresAt:       s.now().Add(s.ttl),
		Lines:           []models.CartLine{},
	}
	created, err := repo.Create(ctx, record)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return record, nil
}

func submittedError(record *models.CartRecord) error {
	details := map[string]any{"cart_id": record.ID.String()}
	if record.SubmittedOrderID != nil {
		details["order_id"] = *record.SubmittedOrderID
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cart already submitted").WithDetails(details)
}

func mapWriteError(err error, action string) error {
	switch {
	case errors.Is(err, ErrNotMutable):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart already submitted")
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart changed concurrently; retry")
	case pkgerrors.As(err) != nil:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}

func lineFromUnit(unit commerce.Unit, quantity int) models.CartLine {
	return models.CartLine{
		UnitID:       unit.ID,
		ProductID:    unit.ProductID,
		ProductType:  unit.ProductType,
		Name:         unit.Name,
		Quantity:     quantity,
		CatalogPrice: max(unit.Price, 0),
	}
}

func findLine(record *models.CartRecord, lineID uuid.UUID) (models.CartLine, bool) {
	for _, line := range record.Lines {
		if line.ID == lineID {
			return line, true
		}
	}
	return models.CartLine{}, false
}

func samePromotion(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
