package tradein

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/catalog"
	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/storage/s3store"
	"github.com/angelmondragon/revo-backend/pkg/types"
)

type fakeMedia struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	failOn   string
}

func (m *fakeMedia) Upload(_ context.Context, key string, body io.Reader, _ string) (s3store.Object, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return s3store.Object{}, err
	}
	if m.failOn != "" && strings.Contains(key, m.failOn) {
		return s3store.Object{}, errors.New("s3 unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded = append(m.uploaded, key)
	return s3store.Object{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (m *fakeMedia) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "outbox down")
}

type fixture struct {
	conn  *gorm.DB
	media *fakeMedia
	svc   Service
	brand models.Brand
}

func newFixture(t *testing.T, emitter outbox.Emitter) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	brand := models.Brand{Name: "Apple"}
	require.NoError(t, conn.Create(&brand).Error)

	if emitter == nil {
		emitter = outbox.NewService(outbox.NewRepository(conn), nil)
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	media := &fakeMedia{}
	svc, err := NewService(Dependencies{
		Tx:        db.FromConn(conn),
		Repo:      NewRepository(conn),
		Brands:    catalog.NewRepository(conn),
		Media:     media,
		Outbox:    emitter,
		Ledger:    ledgerSvc,
		Limits:    PhotoLimits{MaxPhotos: 5, MaxBytes: 1024},
		KeyPrefix: "tradein",
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return &fixture{conn: conn, media: media, svc: svc, brand: brand}
}

func photo(name string) Photo {
	body := []byte("jpeg-bytes")
	return Photo{FileName: name, ContentType: "image/jpeg", Size: int64(len(body)), Body: bytes.NewReader(body)}
}

func count(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestSubmitPickupByBrandName(t *testing.T) {
	f := newFixture(t, nil)
	userID := uuid.New()
	name := "  apple "
	estimate := int64(45000)

	view, err := f.svc.SubmitPickup(context.Background(), userID, SubmitPickupInput{
		BrandName:           &name,
		ModelText:           " iPhone 13 ",
		Condition:           "a",
		Address:             &types.Address{Line1: "1 Main St", City: "Austin", PostalCode: "78701"},
		EstimatedPriceCents: &estimate,
		Photos:              []Photo{photo("Front Side.JPG"), photo("back.jpg")},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.PickupStatusRequested, view.Status)
	assert.Equal(t, enums.DeviceConditionA, view.Condition)
	assert.Equal(t, "iPhone 13", view.ModelText)
	require.NotNil(t, view.BrandName)
	assert.Equal(t, "Apple", *view.BrandName)
	assert.Nil(t, view.BrandID)
	assert.Nil(t, view.Evaluation)
	require.NotNil(t, view.Address)
	assert.Equal(t, "US", view.Address.Country)

	require.Len(t, view.Photos, 2)
	prefix := "https://cdn.example.com/tradein/" + userID.String() + "/" + view.ID.String() + "/"
	assert.Equal(t, prefix+"1-front-side.jpg", view.Photos[0])
	assert.Equal(t, prefix+"2-back.jpg", view.Photos[1])

	assert.EqualValues(t, 1, count(t, f.conn, &models.PickupRequest{}))
	assert.EqualValues(t, 1, count(t, f.conn, &models.OutboxEvent{}))
	assert.EqualValues(t, 1, count(t, f.conn, &models.LedgerEvent{}))
}

func TestSubmitPickupByBrandIDWithoutPhotos(t *testing.T) {
	f := newFixture(t, nil)
	brandID := f.brand.ID

	view, err := f.svc.SubmitPickup(context.Background(), uuid.New(), SubmitPickupInput{
		BrandID:   &brandID,
		ModelText: "Galaxy S22",
		Condition: "E",
	})
	require.NoError(t, err)
	require.NotNil(t, view.BrandID)
	assert.Equal(t, brandID, *view.BrandID)
	assert.Empty(t, view.Photos)
	assert.Empty(t, f.media.uploaded)
}

func TestSubmitPickupValidationHappensBeforeUpload(t *testing.T) {
	f := newFixture(t, nil)
	brandID := f.brand.ID
	name := "Apple"

	cases := map[string]SubmitPickupInput{
		"both brand fields": {BrandID: &brandID, BrandName: &name, ModelText: "x", Condition: "A"},
		"no brand":          {ModelText: "x", Condition: "A"},
		"bad condition":     {BrandID: &brandID, ModelText: "x", Condition: "F"},
		"missing model":     {BrandID: &brandID, Condition: "A"},
		"too many photos": {BrandID: &brandID, ModelText: "x", Condition: "A", Photos: []Photo{
			photo("1.jpg"), photo("2.jpg"), photo("3.jpg"), photo("4.jpg"), photo("5.jpg"), photo("6.jpg"),
		}},
		"oversized photo": {BrandID: &brandID, ModelText: "x", Condition: "A", Photos: []Photo{
			{FileName: "big.jpg", ContentType: "image/jpeg", Size: 4096, Body: bytes.NewReader(make([]byte, 4096))},
		}},
		"not an image": {BrandID: &brandID, ModelText: "x", Condition: "A", Photos: []Photo{
			{FileName: "doc.pdf", ContentType: "application/pdf", Size: 10, Body: bytes.NewReader(make([]byte, 10))},
		}},
	}
	for name, input := range cases {
		_, err := f.svc.SubmitPickup(context.Background(), uuid.New(), input)
		requireCode(t, err, pkgerrors.CodeValidation)
		assert.Empty(t, f.media.uploaded, name)
	}
	assert.EqualValues(t, 0, count(t, f.conn, &models.PickupRequest{}))
}

func TestSubmitPickupReportsEveryViolation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.SubmitPickup(context.Background(), uuid.New(), SubmitPickupInput{Condition: "Z"})
	requireCode(t, err, pkgerrors.CodeValidation)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Len(t, details["errors"], 3)
}

func TestSubmitPickupUnknownBrand(t *testing.T) {
	f := newFixture(t, nil)
	name := "Nokia"

	_, err := f.svc.SubmitPickup(context.Background(), uuid.New(), SubmitPickupInput{
		BrandName: &name, ModelText: "3310", Condition: "C", Photos: []Photo{photo("a.jpg")},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Empty(t, f.media.uploaded)
}

func TestSubmitPickupUploadFailureCleansUp(t *testing.T) {
	f := newFixture(t, nil)
	f.media.failOn = "/2-"
	brandID := f.brand.ID

	_, err := f.svc.SubmitPickup(context.Background(), uuid.New(), SubmitPickupInput{
		BrandID: &brandID, ModelText: "Pixel 7", Condition: "B",
		Photos: []Photo{photo("a.jpg"), photo("b.jpg"), photo("c.jpg")},
	})
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.ElementsMatch(t, f.media.uploaded, f.media.deleted)
	assert.EqualValues(t, 0, count(t, f.conn, &models.PickupRequest{}))
}

func TestSubmitPickupInsertFailureDeletesPhotos(t *testing.T) {
	f := newFixture(t, failingEmitter{})
	brandID := f.brand.ID

	_, err := f.svc.SubmitPickup(context.Background(), uuid.New(), SubmitPickupInput{
		BrandID: &brandID, ModelText: "Pixel 7", Condition: "B",
		Photos: []Photo{photo("a.jpg"), photo("b.jpg")},
	})
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Len(t, f.media.uploaded, 2)
	assert.ElementsMatch(t, f.media.uploaded, f.media.deleted)
	assert.EqualValues(t, 0, count(t, f.conn, &models.PickupRequest{}))
}

func TestOwnerReads(t *testing.T) {
	f := newFixture(t, nil)
	brandID := f.brand.ID
	owner := uuid.New()

	created, err := f.svc.SubmitPickup(context.Background(), owner, SubmitPickupInput{BrandID: &brandID, ModelText: "iPad", Condition: "B"})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	got, err := f.svc.Get(context.Background(), owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Very Good", got.ConditionLabel)

	_, err = f.svc.Get(context.Background(), uuid.New(), created.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.Get(context.Background(), owner, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	others, err := f.svc.ListMine(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestPhotoKeySanitizesNames(t *testing.T) {
	user, pickup := uuid.New(), uuid.New()
	key := photoKey("/tradein/", user, pickup, 0, Photo{FileName: "../../My Phöne!!.jpeg", ContentType: "image/jpeg"})
	assert.Equal(t, "tradein/"+user.String()+"/"+pickup.String()+"/1-my-phne.jpg", key)

	key = photoKey("tradein", user, pickup, 2, Photo{FileName: "", ContentType: "image/png; charset=binary"})
	assert.True(t, strings.HasSuffix(key, "/3-photo.png"), key)
}
