package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/internal/cart"
	checkoutsvc "github.com/tillpoint/tillpoint-backend/internal/checkout"
	"github.com/tillpoint/tillpoint-backend/internal/giftcards"
	"github.com/tillpoint/tillpoint-backend/internal/products"
	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/internal/transactions"
	"github.com/tillpoint/tillpoint-backend/internal/variants"
	"github.com/tillpoint/tillpoint-backend/pkg/config"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/types"
)

type env struct {
	db      *gorm.DB
	handler http.Handler
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.InventoryItem{},
		&models.Transaction{},
		&models.TransactionItem{},
		&models.GiftCard{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stocksSvc, err := stock.NewService(stock.NewRepository(gdb), nil)
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	productsSvc, err := products.NewService(products.NewRepository(gdb))
	if err != nil {
		t.Fatalf("products service: %v", err)
	}
	variantsSvc, err := variants.NewService(variants.NewRepository(gdb), variants.NewGenerator(config.VariantsConfig{}), stocksSvc)
	if err != nil {
		t.Fatalf("variants service: %v", err)
	}
	txRepo := transactions.NewRepository(gdb)
	transactionsSvc, err := transactions.NewService(txRepo)
	if err != nil {
		t.Fatalf("transactions service: %v", err)
	}
	checkoutSvc, err := checkoutsvc.NewService(gormTxRunner{db: gdb}, stocksSvc, txRepo, nil, nil)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	giftcardsSvc, err := giftcards.NewService(giftcards.NewRepository(gdb), nil)
	if err != nil {
		t.Fatalf("gift card service: %v", err)
	}

	handler := NewRouter(Deps{
		Config:       &config.Config{App: config.AppConfig{Env: config.AppEnvDev}},
		Products:     productsSvc,
		Variants:     variantsSvc,
		Checkout:     checkoutSvc,
		Transactions: transactionsSvc,
		GiftCards:    giftcardsSvc,
		TaxRules:     cart.TaxRules{DefaultRate: decimal.RequireFromString("0.08")},
	})
	return &env{db: gdb, handler: handler}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *env) seedProduct(t *testing.T, name, sku, price string, qty int) models.Product {
	t.Helper()
	s := sku
	product := models.Product{
		ID:    uuid.New(),
		Name:  name,
		SKU:   &s,
		Price: decimal.RequireFromString(price),
	}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := e.db.Create(&models.InventoryItem{SKU: sku, AvailableQty: qty}).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return product
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return body.Error
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	e := newEnv(t)
	product := e.seedProduct(t, "Widget", "WID-1", "10.00", 5)

	w := e.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "cash",
		"lines": []map[string]any{
			{"product_id": product.ID, "quantity": 2},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := body.Data.(map[string]any)
	if data["total"] != "21.60" || data["subtotal"] != "20.00" || data["tax"] != "1.60" {
		t.Fatalf("unexpected totals: %v", data)
	}

	var item models.InventoryItem
	if err := e.db.First(&item, "sku = ?", "WID-1").Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if item.AvailableQty != 3 {
		t.Fatalf("expected stock 3 after checkout, got %d", item.AvailableQty)
	}
}

func TestCheckoutSumsRepeatedLines(t *testing.T) {
	e := newEnv(t)
	product := e.seedProduct(t, "Widget", "WID-1", "10.00", 5)

	w := e.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "cash",
		"lines": []map[string]any{
			{"product_id": product.ID, "quantity": 2},
			{"product_id": product.ID, "quantity": 1},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := body.Data.(map[string]any)
	if data["subtotal"] != "30.00" {
		t.Fatalf("repeated lines must sum, got subtotal %v", data["subtotal"])
	}
	items := data["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["quantity"] != float64(3) {
		t.Fatalf("expected one merged item of quantity 3, got %v", items)
	}

	var item models.InventoryItem
	if err := e.db.First(&item, "sku = ?", "WID-1").Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if item.AvailableQty != 2 {
		t.Fatalf("expected stock 2 after checkout, got %d", item.AvailableQty)
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	e := newEnv(t)
	product := e.seedProduct(t, "Widget", "WID-1", "10.00", 1)

	w := e.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "card",
		"lines": []map[string]any{
			{"product_id": product.ID, "quantity": 2},
		},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body)
	}
	apiErr := decodeError(t, w)
	if apiErr.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code: %s", apiErr.Code)
	}
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "cash",
		"lines":          []map[string]any{},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body)
	}
}

func TestGiftCardRedeemFlow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/gift-cards", map[string]any{
		"code":  "GC-2026",
		"value": "50.00",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	w = e.do(t, http.MethodPost, "/api/v1/gift-cards/redeem", map[string]any{
		"code":   "GC-2026",
		"amount": "20.00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.(map[string]any)["new_balance"] != "30.00" {
		t.Fatalf("unexpected balance: %v", body.Data)
	}

	w = e.do(t, http.MethodPost, "/api/v1/gift-cards/redeem", map[string]any{
		"code":   "GC-2026",
		"amount": "99.00",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body)
	}
	if apiErr := decodeError(t, w); apiErr.Code != string(pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("unexpected code: %s", apiErr.Code)
	}

	w = e.do(t, http.MethodGet, "/api/v1/gift-cards/GC-2026", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
}

func TestTransactionListStatusFilter(t *testing.T) {
	e := newEnv(t)
	cash := e.seedProduct(t, "Coffee", "COF-1", "4.00", 10)
	tab := e.seedProduct(t, "Beer", "BER-1", "6.00", 10)

	w := e.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "cash",
		"lines":          []map[string]any{{"product_id": cash.ID, "quantity": 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("cash checkout: %d: %s", w.Code, w.Body)
	}
	w = e.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "tab",
		"lines":          []map[string]any{{"product_id": tab.ID, "quantity": 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("tab checkout: %d: %s", w.Code, w.Body)
	}

	w = e.do(t, http.MethodGet, "/api/v1/transactions?status=open", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	listed := body.Data.([]any)
	if len(listed) != 1 || listed[0].(map[string]any)["status"] != "open" {
		t.Fatalf("expected only the open tab, got %v", listed)
	}

	w = e.do(t, http.MethodGet, "/api/v1/transactions?status=archived", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d: %s", w.Code, w.Body)
	}
}

func TestVariantCombinationEndpoints(t *testing.T) {
	e := newEnv(t)
	productID := uuid.New()
	if err := e.db.Create(&models.Product{ID: productID, Name: "Tee", Price: decimal.RequireFromString("10.00"), HasVariants: true}).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/products/%s/variants/combinations/generate", productID), map[string]any{
		"axes": []map[string]any{
			{"name": "Color", "values": []string{"Red", "Blue"}},
			{"name": "Size", "values": []string{"S", "M"}},
		},
		"defaults": map[string]any{"price": "12.00"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var preview types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	combos := preview.Data.([]any)
	if len(combos) != 4 {
		t.Fatalf("expected 4 combinations, got %d", len(combos))
	}

	save := map[string]any{"combinations": []map[string]any{}}
	for _, raw := range combos {
		combo := raw.(map[string]any)
		save["combinations"] = append(save["combinations"].([]map[string]any), map[string]any{
			"attributes": combo["attributes"],
			"sku":        combo["sku"],
			"price":      combo["price"],
		})
	}
	w = e.do(t, http.MethodPut, fmt.Sprintf("/api/v1/products/%s/variants/combinations", productID), save)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%s/variants", productID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var listed types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&listed); err != nil {
		t.Fatalf("decode variants: %v", err)
	}
	if got := len(listed.Data.([]any)); got != 4 {
		t.Fatalf("expected 4 persisted variants, got %d", got)
	}
}
