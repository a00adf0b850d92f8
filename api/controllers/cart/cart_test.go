package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/revo-backend/api/middleware"
	cartsvc "github.com/angelmondragon/revo-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

type stubCartService struct {
	view      *cartsvc.View
	err       error
	lastUser  uuid.UUID
	lastProd  uuid.UUID
	lastQty   int
	removedID uuid.UUID
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cartsvc.View, error) {
	s.lastUser = userID
	return s.view, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cartsvc.View, error) {
	s.lastUser, s.lastProd, s.lastQty = userID, productID, qty
	return s.view, s.err
}

func (s *stubCartService) SetItemQty(ctx context.Context, userID, productID uuid.UUID, qty int) (*cartsvc.View, error) {
	s.lastUser, s.lastProd, s.lastQty = userID, productID, qty
	return s.view, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.View, error) {
	s.removedID = productID
	return s.view, s.err
}

func (s *stubCartService) Count(ctx context.Context, userID uuid.UUID) (*cartsvc.CountView, error) {
	return &cartsvc.CountView{Count: 2, TotalItems: 5}, s.err
}

func authed(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{view: &cartsvc.View{
		Items:         []cartsvc.LineView{{ProductID: uuid.New(), Title: "Pixel 8", UnitPriceCents: 45000, Qty: 2, LineTotalCents: 90000}},
		SubtotalCents: 90000,
		Currency:      "usd",
	}}

	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID))

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data cartsvc.View `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, int64(90000), envelope.Data.SubtotalCents)
	assert.Equal(t, userID, svc.lastUser)
}

func TestCartFetchRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCartAddItem(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	svc := &stubCartService{view: &cartsvc.View{}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+productID.String()+`"}`))
	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, authed(req, userID))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, productID, svc.lastProd)
	assert.Zero(t, svc.lastQty, "the service applies the default quantity")
}

func TestCartAddItemRejectsBadPayload(t *testing.T) {
	userID := uuid.New()
	for name, body := range map[string]string{
		"bad uuid":     `{"product_id":"phone"}`,
		"negative qty": `{"product_id":"` + uuid.NewString() + `","qty":-2}`,
		"unknown":      `{"product_id":"` + uuid.NewString() + `","price":1}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		resp := httptest.NewRecorder()
		CartAddItem(&stubCartService{}, nil).ServeHTTP(resp, authed(req, userID))
		assert.Equal(t, http.StatusBadRequest, resp.Code, name)
	}
}

func TestCartSetItemQtyNotFound(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")}

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"qty":0}`))
	req = withParam(authed(req, userID), "productId", productID.String())
	resp := httptest.NewRecorder()
	CartSetItemQty(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, productID, svc.lastProd)
	assert.Equal(t, 0, svc.lastQty)
}

func TestCartSetItemQtyRequiresQty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`))
	req = withParam(authed(req, uuid.New()), "productId", uuid.NewString())
	resp := httptest.NewRecorder()
	CartSetItemQty(&stubCartService{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCartRemoveAndCount(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	svc := &stubCartService{view: &cartsvc.View{}}

	req := withParam(authed(httptest.NewRequest(http.MethodDelete, "/", nil), userID), "productId", productID.String())
	resp := httptest.NewRecorder()
	CartRemoveItem(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, productID, svc.removedID)

	resp = httptest.NewRecorder()
	CartCount(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/", nil), userID))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"count":2,"total_items":5}}`, resp.Body.String())
}
