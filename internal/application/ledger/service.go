package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service is the only writer of stock movements and balances.
type Service struct {
	coord    *Coordinator
	policies policy.Source
	metrics  *telemetry.LedgerMetrics
	now      func() time.Time
}

// NewService creates a ledger service. policies may be nil, in which case
// the defaults of policy.DefaultTenantSettings apply everywhere.
func NewService(coord *Coordinator, policies policy.Source) *Service {
	return &Service{
		coord:    coord,
		policies: policies,
		now:      time.Now,
	}
}

// SetMetrics enables movement and verification metrics.
func (s *Service) SetMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the current time of the ledger clock. Documents stamp their
// transitions with it so they agree with the movements they produce.
func (s *Service) Now() time.Time {
	return s.now()
}

// Coordinator returns the coordinator the service writes through.
func (s *Service) Coordinator() *Coordinator {
	return s.coord
}

// Append validates req against the locked balance, persists the movement and
// writes the new balance through in the same unit of work. The key must be
// held by scope.
func (s *Service) Append(ctx context.Context, scope *Scope, req AppendRequest) (*inventory.StockMovement, error) {
	if !scope.Holds(req.Key) {
		return nil, shared.NewDomainError(shared.CodeConflict,
			fmt.Sprintf("balance %s is not locked by this unit of work", req.Key))
	}

	balance, err := scope.Balances().GetForUpdate(ctx, req.Key)
	if err != nil {
		return nil, fmt.Errorf("load balance %s: %w", req.Key, err)
	}

	net := req.QuantityOut.Sub(req.QuantityIn)
	allowNegative := req.AllowNegative
	if req.ApplyNegativeStockPolicy && net.IsPositive() {
		behavior, err := s.negativeStockBehavior(ctx, req.Key)
		if err != nil {
			return nil, err
		}
		verdict := policy.EvaluateNegativeStock(behavior, balance.OnHand, net)
		scope.Advise(verdict)
		if verdict.Outcome != policy.Allow {
			s.metrics.RecordAdvisory(ctx, req.Key.TenantID, verdict.Policy, string(verdict.Outcome))
		}
		allowNegative = !verdict.IsBlocked()
	}

	if req.RequireAvailable {
		need := net
		if req.ReservedDelta.IsPositive() {
			need = need.Add(req.ReservedDelta)
		}
		if need.IsPositive() && balance.Available().LessThan(need) {
			return nil, &shared.InsufficientStockError{
				Key:       req.Key.String(),
				Bucket:    "available",
				Available: balance.Available(),
				Requested: need,
			}
		}
	}

	movement, err := balance.Apply(inventory.MovementDraft{
		Key:            req.Key,
		Kind:           req.Kind,
		QuantityIn:     req.QuantityIn,
		QuantityOut:    req.QuantityOut,
		ReservedDelta:  req.ReservedDelta,
		InTransitDelta: req.InTransitDelta,
		DamagedDelta:   req.DamagedDelta,
		UnitCost:       req.UnitCost,
		Reference:      req.Reference,
		ActorID:        req.ActorID,
		Notes:          req.Notes,
		AllowNegative:  allowNegative,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := scope.Movements().Append(ctx, movement); err != nil {
		return nil, fmt.Errorf("append movement: %w", err)
	}
	if err := scope.Balances().Save(ctx, balance); err != nil {
		return nil, fmt.Errorf("save balance %s: %w", req.Key, err)
	}
	s.metrics.RecordMovement(ctx, req.Key.TenantID, string(req.Kind))

	if movement.IsOutbound() {
		if err := s.checkLowStock(ctx, scope, balance); err != nil {
			return nil, err
		}
	}
	return movement, nil
}

func (s *Service) negativeStockBehavior(ctx context.Context, key inventory.BalanceKey) (policy.Behavior, error) {
	if s.policies == nil {
		return policy.Block, nil
	}
	tenant, err := s.policies.TenantSettings(ctx, key.TenantID)
	if err != nil {
		return "", fmt.Errorf("load tenant settings: %w", err)
	}
	location, err := s.policies.LocationSettings(ctx, key.TenantID, key.LocationID)
	if err != nil {
		return "", fmt.Errorf("load location settings: %w", err)
	}
	return policy.ResolveNegativeStock(tenant, location), nil
}

func (s *Service) checkLowStock(ctx context.Context, scope *Scope, balance *inventory.StockBalance) error {
	if s.policies == nil {
		return nil
	}
	settings, err := s.policies.LocationSettings(ctx, balance.Key.TenantID, balance.Key.LocationID)
	if err != nil {
		return fmt.Errorf("load location settings: %w", err)
	}
	if settings.LowStockThreshold == nil || !balance.OnHand.LessThan(*settings.LowStockThreshold) {
		return nil
	}
	scope.Emit(inventory.NewLowStockEvent(balance.Key, balance.OnHand, *settings.LowStockThreshold))
	return nil
}

// RecordProduction creates a batch and books its quantity in at the
// production location at the batch unit cost.
func (s *Service) RecordProduction(ctx context.Context, actor shared.Actor, req ProductionRequest) (*inventory.Batch, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if req.ProductionDate.IsZero() {
		req.ProductionDate = s.now()
	}
	batch, err := inventory.NewBatch(inventory.NewBatchParams{
		TenantID:       req.TenantID,
		ProductID:      req.ProductID,
		LocationID:     req.LocationID,
		BatchNumber:    req.BatchNumber,
		ProductionDate: req.ProductionDate,
		ExpiryDate:     req.ExpiryDate,
		Quantity:       req.Quantity,
		BulkPrice:      req.BulkPrice,
		UnitCost:       req.UnitCost,
		CreatedBy:      actor.UserID,
	})
	if err != nil {
		return nil, err
	}
	key := inventory.NewBalanceKey(batch.TenantID, batch.LocationID, batch.ProductID, &batch.ID)
	unitCost := batch.UnitCost

	_, err = s.coord.Run(ctx, []inventory.BalanceKey{key}, func(scope *Scope) error {
		if err := scope.Batches().Save(ctx, batch); err != nil {
			return fmt.Errorf("save batch: %w", err)
		}
		if _, err := s.Append(ctx, scope, AppendRequest{
			Key:        key,
			Kind:       inventory.KindProduction,
			QuantityIn: batch.Quantity,
			UnitCost:   &unitCost,
			Reference:  shared.Reference{Kind: shared.RefBatch, ID: batch.ID},
			ActorID:    actor.UserID,
			Notes:      "batch " + batch.BatchNumber,
		}); err != nil {
			return err
		}
		scope.Emit(inventory.NewBatchProducedEvent(batch))
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Production batch recorded",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("quantity", batch.Quantity.String()),
	)
	return batch, nil
}

// Reserve moves quantity from available into reserved.
func (s *Service) Reserve(ctx context.Context, actor shared.Actor, req ReservationRequest) (*inventory.StockMovement, error) {
	if err := s.checkReservation(req); err != nil {
		return nil, err
	}
	return s.single(ctx, req.Key, AppendRequest{
		Key:              req.Key,
		Kind:             inventory.KindAdjustment,
		ReservedDelta:    req.Quantity,
		Reference:        req.Reference,
		ActorID:          actor.UserID,
		Notes:            req.Notes,
		RequireAvailable: true,
	})
}

// Release returns reserved quantity to available.
func (s *Service) Release(ctx context.Context, actor shared.Actor, req ReservationRequest) (*inventory.StockMovement, error) {
	if err := s.checkReservation(req); err != nil {
		return nil, err
	}
	return s.single(ctx, req.Key, AppendRequest{
		Key:           req.Key,
		Kind:          inventory.KindAdjustment,
		ReservedDelta: req.Quantity.Neg(),
		Reference:     req.Reference,
		ActorID:       actor.UserID,
		Notes:         req.Notes,
	})
}

func (s *Service) checkReservation(req ReservationRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if !req.Quantity.IsPositive() {
		return shared.InvalidInput("reservation quantity must be positive")
	}
	return nil
}

// Adjust corrects on-hand by a signed delta. Adjustments never take stock
// below zero.
func (s *Service) Adjust(ctx context.Context, actor shared.Actor, req AdjustmentRequest) (*inventory.StockMovement, error) {
	if err := actor.Require(shared.CapStockAdjust); err != nil {
		return nil, err
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	if req.Delta.IsZero() {
		return nil, shared.InvalidInput("adjustment delta must not be zero")
	}
	entry := AppendRequest{
		Key:      req.Key,
		Kind:     inventory.KindAdjustment,
		UnitCost: req.UnitCost,
		ActorID:  actor.UserID,
		Notes:    req.Reason,
	}
	if req.Delta.IsPositive() {
		entry.QuantityIn = req.Delta
	} else {
		entry.QuantityOut = req.Delta.Neg()
		entry.UnitCost = nil
	}
	return s.single(ctx, req.Key, entry)
}

// WriteOff removes stock from on-hand. Damage keeps the units in the damaged
// bucket; expiry disposes of them.
func (s *Service) WriteOff(ctx context.Context, actor shared.Actor, req WriteOffRequest) (*inventory.StockMovement, error) {
	if err := actor.Require(shared.CapStockAdjust); err != nil {
		return nil, err
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, shared.InvalidInput("write-off quantity must be positive")
	}
	entry := AppendRequest{
		Key:         req.Key,
		Kind:        req.Kind,
		QuantityOut: req.Quantity,
		ActorID:     actor.UserID,
		Notes:       req.Reason,
	}
	if req.Kind == inventory.KindDamage {
		entry.DamagedDelta = req.Quantity
	}
	return s.single(ctx, req.Key, entry)
}

func (s *Service) single(ctx context.Context, key inventory.BalanceKey, req AppendRequest) (*inventory.StockMovement, error) {
	var movement *inventory.StockMovement
	_, err := s.coord.Run(ctx, []inventory.BalanceKey{key}, func(scope *Scope) error {
		m, err := s.Append(ctx, scope, req)
		movement = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// CheckAvailability reports whether quantity can be taken from key without
// touching reserved stock. It takes no lock.
func (s *Service) CheckAvailability(ctx context.Context, key inventory.BalanceKey, quantity decimal.Decimal) (*Availability, error) {
	if err := key.Validate(); err != nil {
		return nil, shared.InvalidInput("%s", err.Error())
	}
	var out *Availability
	err := s.coord.Execute(ctx, func(tx Tx) error {
		b, err := tx.Balances().Get(ctx, key)
		if err != nil {
			return fmt.Errorf("load balance %s: %w", key, err)
		}
		out = &Availability{
			Key:        key,
			OnHand:     b.OnHand,
			Reserved:   b.Reserved,
			Available:  b.Available(),
			Requested:  quantity,
			Sufficient: !b.Available().LessThan(quantity),
		}
		return nil
	})
	return out, err
}

// Balance returns the cached balance of key.
func (s *Service) Balance(ctx context.Context, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	var out *inventory.StockBalance
	err := s.coord.Execute(ctx, func(tx Tx) error {
		b, err := tx.Balances().Get(ctx, key)
		out = b
		return err
	})
	return out, err
}

// Movements returns the movements of key in sequence order.
func (s *Service) Movements(ctx context.Context, key inventory.BalanceKey) ([]*inventory.StockMovement, error) {
	var out []*inventory.StockMovement
	err := s.coord.Execute(ctx, func(tx Tx) error {
		m, err := tx.Movements().ListByKey(ctx, key)
		out = m
		return err
	})
	return out, err
}

// MovementsByReference returns the movements a workflow document produced.
func (s *Service) MovementsByReference(ctx context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*inventory.StockMovement, error) {
	var out []*inventory.StockMovement
	err := s.coord.Execute(ctx, func(tx Tx) error {
		m, err := tx.Movements().ListByReference(ctx, tenantID, ref)
		out = m
		return err
	})
	return out, err
}
