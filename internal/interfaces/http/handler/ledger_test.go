package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/interfaces/http/dto"
	"github.com/erp/retailops/internal/interfaces/http/middleware"
	"github.com/erp/retailops/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func ledgerEngine(l LedgerReader) *gin.Engine {
	h := NewLedgerHandler(l, 2, 30)
	e := gin.New()
	e.Use(middleware.RequestID())
	g := e.Group("/tenants/:tenant_id/ledger")
	g.GET("/balances/:location_id/:product_id", h.GetBalance)
	g.GET("/movements", h.ListMovements)
	g.GET("/expiring", h.ListExpiring)
	g.POST("/verify", h.Verify)
	return e
}

func serve(e *gin.Engine, method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(method, url, nil))
	return w
}

func TestLedgerHandler_GetBalance(t *testing.T) {
	l := testutil.NewLedger(t)
	loc, prod := uuid.New(), uuid.New()
	l.Seed(t, l.Key(loc, prod), "12", "2.50")
	e := ledgerEngine(l.Service)

	w := serve(e, http.MethodGet, "/tenants/"+l.TenantID.String()+"/ledger/balances/"+loc.String()+"/"+prod.String())

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[BalanceResponse](t, w)
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.OnHand.Equal(testutil.Dec("12")))
	assert.True(t, resp.Data.Available.Equal(testutil.Dec("12")))
	require.NotNil(t, resp.Data.AverageCost)
	assert.True(t, resp.Data.AverageCost.Equal(testutil.Dec("2.5")))
	assert.Equal(t, int64(1), resp.Data.LastSequence)
	assert.Nil(t, resp.Data.BatchID)
}

func TestLedgerHandler_GetBalanceInvalidIDs(t *testing.T) {
	e := ledgerEngine(testutil.NewLedger(t).Service)

	tests := []struct {
		name string
		url  string
	}{
		{"tenant", "/tenants/nope/ledger/balances/" + uuid.NewString() + "/" + uuid.NewString()},
		{"location", "/tenants/" + uuid.NewString() + "/ledger/balances/nope/" + uuid.NewString()},
		{"batch", "/tenants/" + uuid.NewString() + "/ledger/balances/" + uuid.NewString() + "/" + uuid.NewString() + "?batch_id=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(e, http.MethodGet, tt.url)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode[any](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestLedgerHandler_ListMovementsByReference(t *testing.T) {
	l := testutil.NewLedger(t)
	expiry := testutil.FixedNow.AddDate(0, 0, 20)
	batch, err := l.Service.RecordProduction(context.Background(), l.Admin(), ledger.ProductionRequest{
		TenantID:    l.TenantID,
		ProductID:   uuid.New(),
		LocationID:  uuid.New(),
		BatchNumber: "B-100",
		ExpiryDate:  &expiry,
		Quantity:    testutil.Dec("8"),
		BulkPrice:   testutil.Dec("16.00"),
	})
	require.NoError(t, err)
	e := ledgerEngine(l.Service)

	w := serve(e, http.MethodGet, "/tenants/"+l.TenantID.String()+"/ledger/movements?ref_kind=batch&ref_id="+batch.ID.String())

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[[]MovementResponse](t, w)
	require.Len(t, resp.Data, 1)
	m := resp.Data[0]
	assert.Equal(t, string(inventory.KindProduction), m.Kind)
	assert.True(t, m.QuantityIn.Equal(testutil.Dec("8")))
	require.NotNil(t, m.BatchID)
	assert.Equal(t, batch.ID, *m.BatchID)
	assert.Equal(t, "batch:"+batch.ID.String(), m.Reference)
}

func TestLedgerHandler_ListMovementsRejectsUnknownKind(t *testing.T) {
	l := testutil.NewLedger(t)
	e := ledgerEngine(l.Service)

	w := serve(e, http.MethodGet, "/tenants/"+l.TenantID.String()+"/ledger/movements?ref_kind=invoice&ref_id="+uuid.NewString())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decode[any](t, w).Error.Code)
}

func TestLedgerHandler_ListExpiring(t *testing.T) {
	l := testutil.NewLedger(t)
	loc := uuid.New()
	for number, days := range map[string]int{"SOON": 5, "LATER": 60} {
		expiry := testutil.FixedNow.AddDate(0, 0, days)
		_, err := l.Service.RecordProduction(context.Background(), l.Admin(), ledger.ProductionRequest{
			TenantID:    l.TenantID,
			ProductID:   uuid.New(),
			LocationID:  loc,
			BatchNumber: number,
			ExpiryDate:  &expiry,
			Quantity:    testutil.Dec("3"),
			BulkPrice:   testutil.Dec("3.00"),
		})
		require.NoError(t, err)
	}
	e := ledgerEngine(l.Service)
	base := "/tenants/" + l.TenantID.String() + "/ledger/expiring"

	w := serve(e, http.MethodGet, base)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[[]ledger.ExpiryAlert](t, w)
	require.Len(t, resp.Data, 1, "default window")
	assert.Equal(t, "SOON", resp.Data[0].BatchNumber)

	w = serve(e, http.MethodGet, base+"?days=90")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ledger.ExpiryAlert](t, w).Data, 2)

	w = serve(e, http.MethodGet, base+"?days=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedgerHandler_Verify(t *testing.T) {
	l := testutil.NewLedger(t)
	ctx := context.Background()
	key := l.Key(uuid.New(), uuid.New())
	l.Seed(t, key, "10", "1.00")
	e := ledgerEngine(l.Service)
	url := "/tenants/" + l.TenantID.String() + "/ledger/verify?parallelism=3"

	w := serve(e, http.MethodPost, url)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[VerifyResponse](t, w)
	assert.True(t, resp.Data.Consistent)
	assert.Empty(t, resp.Data.Discrepancies)

	require.NoError(t, l.UnitOfWork.Execute(ctx, func(tx ledger.Tx) error {
		b, err := tx.Balances().Get(ctx, key)
		if err != nil {
			return err
		}
		b.OnHand = testutil.Dec("7")
		return tx.Balances().Save(ctx, b)
	}))

	w = serve(e, http.MethodPost, url)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[VerifyResponse](t, w)
	assert.False(t, resp.Data.Consistent)
	require.Len(t, resp.Data.Discrepancies, 1)
	d := resp.Data.Discrepancies[0]
	assert.Equal(t, key.LocationID, d.LocationID)
	assert.True(t, d.Cached.OnHand.Equal(testutil.Dec("7")))
	assert.True(t, d.Replayed.OnHand.Equal(testutil.Dec("10")))
}

type failingLedger struct {
	LedgerReader
	err error
}

func (f failingLedger) VerifyTenant(context.Context, uuid.UUID, int) ([]*inventory.Discrepancy, error) {
	return nil, f.err
}

func TestLedgerHandler_VerifyErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", shared.ErrConflict, http.StatusConflict, dto.ErrCodeConflict},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, dto.ErrCodeTimeout},
		{"internal", assert.AnError, http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ledgerEngine(failingLedger{err: tt.err})

			w := serve(e, http.MethodPost, "/tenants/"+uuid.NewString()+"/ledger/verify")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode[any](t, w).Error.Code)
		})
	}
}

func TestLedgerHandler_VerifyHonoursRequestDeadline(t *testing.T) {
	l := testutil.NewLedger(t)
	l.Seed(t, l.Key(uuid.New(), uuid.New()), "1", "1.00")
	e := gin.New()
	h := NewLedgerHandler(l.Service, 1, 30)
	e.POST("/tenants/:tenant_id/ledger/verify", middleware.Timeout(time.Nanosecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.Next()
	}, h.Verify)

	w := serve(e, http.MethodPost, "/tenants/"+l.TenantID.String()+"/ledger/verify")

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}
