package tradein

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/revo-backend/api/middleware"
	"github.com/angelmondragon/revo-backend/internal/evaluations"
	tradeinsvc "github.com/angelmondragon/revo-backend/internal/tradein"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
)

var pngHeader = []byte("\x89PNG\x0D\x0A\x1A\x0A\x00\x00\x00\x0DIHDR")

type stubTradeIn struct {
	input      tradeinsvc.SubmitPickupInput
	photoBytes [][]byte
	err        error
}

func (s *stubTradeIn) SubmitPickup(ctx context.Context, userID uuid.UUID, input tradeinsvc.SubmitPickupInput) (*tradeinsvc.PickupView, error) {
	s.input = input
	for _, p := range input.Photos {
		data, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, err
		}
		s.photoBytes = append(s.photoBytes, data)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &tradeinsvc.PickupView{ID: uuid.New(), UserID: userID, ModelText: input.ModelText}, nil
}

func (s *stubTradeIn) ListMine(ctx context.Context, userID uuid.UUID) ([]tradeinsvc.PickupView, error) {
	return []tradeinsvc.PickupView{}, s.err
}

func (s *stubTradeIn) Get(ctx context.Context, userID, pickupID uuid.UUID) (*tradeinsvc.PickupView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tradeinsvc.PickupView{ID: pickupID, UserID: userID}, nil
}

type stubEvaluations struct {
	action string
	err    error
}

func (s *stubEvaluations) SubmitEvaluation(ctx context.Context, evaluatorID uuid.UUID, input evaluations.SubmitInput) (*tradeinsvc.PickupView, error) {
	return nil, s.err
}

func (s *stubEvaluations) RespondToOffer(ctx context.Context, userID, pickupID uuid.UUID, action string) (*tradeinsvc.PickupView, error) {
	s.action = action
	if s.err != nil {
		return nil, s.err
	}
	return &tradeinsvc.PickupView{ID: pickupID}, nil
}

func (s *stubEvaluations) ListForAdmin(ctx context.Context, params evaluations.AdminListParams) (*evaluations.PickupList, error) {
	return &evaluations.PickupList{}, s.err
}

var limits = tradeinsvc.PhotoLimits{MaxPhotos: 5, MaxBytes: 1 << 20}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func multipartRequest(t *testing.T, fields map[string]string, photos map[string][]byte, contentType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range photos {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="photos"; filename="`+name+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tradein/pickup-requests", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req)
}

func TestSubmitPickupMultipart(t *testing.T) {
	svc := &stubTradeIn{}
	fields := map[string]string{
		"brand_name":      "apple",
		"model_text":      "  iPhone 13 Pro ",
		"storage":         "256GB",
		"condition":       "B",
		"address":         `{"line1":"1 Main St","city":"Vancouver","postal_code":"V6B 1A1"}`,
		"scheduled_at":    "2026-11-02T15:00:00Z",
		"deposit":         "20",
		"estimated_price": "450.50",
	}
	req := multipartRequest(t, fields, map[string][]byte{"front.png": pngHeader}, "image/png")

	resp := httptest.NewRecorder()
	SubmitPickup(svc, limits, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	in := svc.input
	require.NotNil(t, in.BrandName)
	assert.Equal(t, "apple", *in.BrandName)
	assert.Nil(t, in.BrandID)
	assert.Equal(t, "iPhone 13 Pro", in.ModelText)
	assert.Equal(t, "B", in.Condition)
	require.NotNil(t, in.Address)
	assert.Equal(t, "Vancouver", in.Address.City)
	require.NotNil(t, in.ScheduledAt)
	assert.Equal(t, 2026, in.ScheduledAt.Year())
	assert.Equal(t, int64(2000), in.DepositCents)
	require.NotNil(t, in.EstimatedPriceCents)
	assert.Equal(t, int64(45050), *in.EstimatedPriceCents)

	require.Len(t, in.Photos, 1)
	assert.Equal(t, "front.png", in.Photos[0].FileName)
	assert.Equal(t, "image/png", in.Photos[0].ContentType)
	assert.Equal(t, int64(len(pngHeader)), in.Photos[0].Size)
	assert.Equal(t, pngHeader, svc.photoBytes[0])
}

func TestSubmitPickupSniffsMissingContentType(t *testing.T) {
	svc := &stubTradeIn{}
	req := multipartRequest(t, map[string]string{"brand_name": "apple", "model_text": "x", "condition": "A"},
		map[string][]byte{"blob": pngHeader}, "application/octet-stream")

	resp := httptest.NewRecorder()
	SubmitPickup(svc, limits, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Len(t, svc.input.Photos, 1)
	assert.Equal(t, "image/png", svc.input.Photos[0].ContentType)
	assert.Equal(t, pngHeader, svc.photoBytes[0], "sniffing must not consume the body")
}

func TestSubmitPickupJSON(t *testing.T) {
	svc := &stubTradeIn{}
	brandID := uuid.New()
	body := `{"brand_id":"` + brandID.String() + `","model_text":"Galaxy S23","condition":"c","address_text":"1 Main St"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/tradein/pickup-requests", strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	SubmitPickup(svc, limits, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.input.BrandID)
	assert.Equal(t, brandID, *svc.input.BrandID)
	assert.Empty(t, svc.input.Photos)
}

func TestSubmitPickupRejectsMalformedFields(t *testing.T) {
	cases := map[string]map[string]string{
		"brand id":  {"brand_id": "apple"},
		"schedule":  {"brand_name": "apple", "scheduled_at": "tomorrow"},
		"address":   {"brand_name": "apple", "address": "{"},
		"estimated": {"brand_name": "apple", "estimated_price": "a lot"},
	}
	for name, fields := range cases {
		svc := &stubTradeIn{}
		resp := httptest.NewRecorder()
		SubmitPickup(svc, limits, nil).ServeHTTP(resp, multipartRequest(t, fields, nil, ""))
		assert.Equal(t, http.StatusBadRequest, resp.Code, name)
		assert.Empty(t, svc.input.ModelText, name)
	}

	req := authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("brand=apple")))
	req.Header.Set("Content-Type", "text/plain")
	resp := httptest.NewRecorder()
	SubmitPickup(&stubTradeIn{}, limits, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitPickupRejectsOversizedBody(t *testing.T) {
	small := tradeinsvc.PhotoLimits{MaxPhotos: 1, MaxBytes: 16}
	big := bytes.Repeat([]byte("x"), int(maxRequestBytes(small))+1024)
	req := multipartRequest(t, map[string]string{"brand_name": "apple"}, map[string][]byte{"huge.jpg": big}, "image/jpeg")

	resp := httptest.NewRecorder()
	SubmitPickup(&stubTradeIn{}, small, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRespondToOffer(t *testing.T) {
	pickupID := uuid.New()
	svc := &stubEvaluations{}

	req := authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":" Accept "}`)))
	rc := chi.NewRouteContext()
	rc.URLParams.Add("pickupId", pickupID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	resp := httptest.NewRecorder()
	RespondToOffer(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, " Accept ", svc.action, "normalization belongs to the service")

	svc.err = pkgerrors.New(pkgerrors.CodeStateConflict, "pickup has no open offer")
	req = authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"reject"}`)))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	resp = httptest.NewRecorder()
	RespondToOffer(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
