package tradein

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/revo-backend/internal/ledger"
	"github.com/angelmondragon/revo-backend/pkg/db"
	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
	"github.com/angelmondragon/revo-backend/pkg/outbox"
	"github.com/angelmondragon/revo-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/revo-backend/pkg/storage/s3store"
)

const (
	maxModelTextLen = 200
	maxFreeTextLen  = 2000
)

type mediaStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (s3store.Object, error)
	Delete(ctx context.Context, key string) error
}

type brandLookup interface {
	FindBrandByID(ctx context.Context, id uuid.UUID) (*models.Brand, error)
	FindBrandByName(ctx context.Context, name string) (*models.Brand, error)
}

// Service handles trade-in intake and owner reads.
type Service interface {
	SubmitPickup(ctx context.Context, userID uuid.UUID, input SubmitPickupInput) (*PickupView, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]PickupView, error)
	Get(ctx context.Context, userID, pickupID uuid.UUID) (*PickupView, error)
}

type Dependencies struct {
	Tx        db.TxRunner
	Repo      Repository
	Brands    brandLookup
	Media     mediaStore
	Outbox    outbox.Emitter
	Ledger    ledger.Service
	Limits    PhotoLimits
	KeyPrefix string
	Logger    *logger.Logger
}

type service struct {
	Dependencies
}

func NewService(deps Dependencies) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("pickup repository required")
	case deps.Brands == nil:
		return nil, fmt.Errorf("brand lookup required")
	case deps.Media == nil:
		return nil, fmt.Errorf("media store required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case deps.Limits.MaxPhotos < 0 || deps.Limits.MaxBytes <= 0:
		return nil, fmt.Errorf("photo limits must be positive")
	}
	if deps.KeyPrefix == "" {
		deps.KeyPrefix = "tradein"
	}
	return &service{Dependencies: deps}, nil
}

// submission is a validated SubmitPickupInput.
type submission struct {
	brandID     *uuid.UUID
	brandName   *string
	modelText   string
	condition   enums.DeviceCondition
	address     datatypes.JSON
	scheduledAt *time.Time
}

func (s *service) SubmitPickup(ctx context.Context, userID uuid.UUID, input SubmitPickupInput) (*PickupView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	if err := s.resolveBrand(ctx, &sub, input); err != nil {
		return nil, err
	}

	pickupID := uuid.New()
	ctx = s.Logger.WithPickupID(s.Logger.WithUserID(ctx, userID.String()), pickupID.String())

	uploaded, err := s.uploadPhotos(ctx, userID, pickupID, input.Photos)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(uploaded))
	for _, obj := range uploaded {
		urls = append(urls, obj.URL)
	}

	pickup := &models.PickupRequest{
		ID:                  pickupID,
		UserID:              userID,
		BrandID:             sub.brandID,
		BrandName:           sub.brandName,
		ModelText:           sub.modelText,
		Storage:             trimmed(input.Storage),
		Condition:           sub.condition,
		AdditionalInfo:      trimmed(input.AdditionalInfo),
		Notes:               trimmed(input.Notes),
		Address:             sub.address,
		AddressText:         trimmed(input.AddressText),
		ScheduledAt:         sub.scheduledAt,
		DepositCents:        input.DepositCents,
		EstimatedPriceCents: input.EstimatedPriceCents,
		Status:              enums.PickupStatusRequested,
		Photos:              datatypes.JSONSlice[string](urls),
	}

	err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.Repo.WithTx(tx).Create(ctx, pickup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pickup request")
		}
		return s.recordSubmitted(ctx, tx, pickup)
	})
	if err != nil {
		s.discard(ctx, uploaded)
		return nil, err
	}

	s.Logger.Info(s.Logger.WithFields(ctx, map[string]any{
		"condition":   pickup.Condition,
		"photo_count": len(urls),
	}), "pickup request submitted")
	view := ToView(*pickup)
	return &view, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]PickupView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickup requests")
	}
	views := make([]PickupView, 0, len(rows))
	for _, row := range rows {
		views = append(views, ToView(row))
	}
	return views, nil
}

// Get returns NotFound for pickups owned by someone else.
func (s *service) Get(ctx context.Context, userID, pickupID uuid.UUID) (*PickupView, error) {
	if userID == uuid.Nil || pickupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and pickup id are required")
	}
	pickup, err := s.Repo.FindByID(ctx, pickupID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup request")
	}
	if pickup.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup request not found")
	}
	view := ToView(*pickup)
	return &view, nil
}

// validate checks every field before anything is uploaded or persisted and
// reports all violations together.
func (s *service) validate(input SubmitPickupInput) (submission, error) {
	var (
		sub  submission
		errs error
	)

	hasID := input.BrandID != nil && *input.BrandID != uuid.Nil
	hasName := input.BrandName != nil && strings.TrimSpace(*input.BrandName) != ""
	if hasID == hasName {
		errs = multierr.Append(errs, fmt.Errorf("exactly one of brand_id or brand_name is required"))
	}

	sub.modelText = strings.TrimSpace(input.ModelText)
	switch {
	case sub.modelText == "":
		errs = multierr.Append(errs, fmt.Errorf("model_text is required"))
	case len(sub.modelText) > maxModelTextLen:
		errs = multierr.Append(errs, fmt.Errorf("model_text must be at most %d characters", maxModelTextLen))
	}

	condition, err := enums.ParseDeviceCondition(input.Condition)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("condition must be one of A, B, C, D, E"))
	}
	sub.condition = condition

	freeText := []struct {
		field string
		value *string
	}{{"additional_info", input.AdditionalInfo}, {"notes", input.Notes}, {"address_text", input.AddressText}}
	for _, f := range freeText {
		if f.value != nil && len(strings.TrimSpace(*f.value)) > maxFreeTextLen {
			errs = multierr.Append(errs, fmt.Errorf("%s must be at most %d characters", f.field, maxFreeTextLen))
		}
	}
	if input.DepositCents < 0 {
		errs = multierr.Append(errs, fmt.Errorf("deposit_cents must be non-negative"))
	}
	if input.EstimatedPriceCents != nil && *input.EstimatedPriceCents < 0 {
		errs = multierr.Append(errs, fmt.Errorf("estimated_price_cents must be non-negative"))
	}

	if input.Address != nil {
		addr := input.Address.Normalize()
		if !addr.IsZero() {
			raw, err := json.Marshal(addr)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("address is invalid"))
			} else {
				sub.address = datatypes.JSON(raw)
			}
		}
	}
	if input.ScheduledAt != nil && !input.ScheduledAt.IsZero() {
		at := input.ScheduledAt.UTC()
		sub.scheduledAt = &at
	}

	errs = multierr.Append(errs, validatePhotos(input.Photos, s.Limits))
	if errs != nil {
		var messages []string
		for _, e := range multierr.Errors(errs) {
			messages = append(messages, e.Error())
		}
		return submission{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid pickup request").
			WithDetails(map[string]any{"errors": messages})
	}
	return sub, nil
}

func (s *service) resolveBrand(ctx context.Context, sub *submission, input SubmitPickupInput) error {
	var (
		brand *models.Brand
		err   error
	)
	if input.BrandID != nil && *input.BrandID != uuid.Nil {
		brand, err = s.Brands.FindBrandByID(ctx, *input.BrandID)
	} else {
		brand, err = s.Brands.FindBrandByName(ctx, *input.BrandName)
	}
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeValidation, "brand not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve brand")
	}
	if input.BrandID != nil && *input.BrandID != uuid.Nil {
		id := brand.ID
		sub.brandID = &id
	} else {
		name := brand.Name
		sub.brandName = &name
	}
	return nil
}

// uploadPhotos stores every photo concurrently. On any failure the photos
// that did land are removed before returning.
func (s *service) uploadPhotos(ctx context.Context, userID, pickupID uuid.UUID, photos []Photo) ([]s3store.Object, error) {
	if len(photos) == 0 {
		return nil, nil
	}
	objects := make([]s3store.Object, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		g.Go(func() error {
			key := photoKey(s.KeyPrefix, userID, pickupID, i, photo)
			obj, err := s.Media.Upload(gctx, key, photo.Body, photo.ContentType)
			if err != nil {
				return fmt.Errorf("upload photo %d: %w", i+1, err)
			}
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		landed := make([]s3store.Object, 0, len(objects))
		for _, obj := range objects {
			if obj.Key != "" {
				landed = append(landed, obj)
			}
		}
		s.discard(ctx, landed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload pickup photos")
	}
	return objects, nil
}

// discard deletes uploaded objects best-effort; failures are only logged.
func (s *service) discard(ctx context.Context, objects []s3store.Object) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, obj := range objects {
		if err := s.Media.Delete(cleanupCtx, obj.Key); err != nil {
			s.Logger.Warn(s.Logger.WithField(cleanupCtx, "object_key", obj.Key), "failed to delete orphaned pickup photo")
		}
	}
}

func (s *service) recordSubmitted(ctx context.Context, tx *gorm.DB, pickup *models.PickupRequest) error {
	var estimated int64
	if pickup.EstimatedPriceCents != nil {
		estimated = *pickup.EstimatedPriceCents
	}
	actor := pickup.UserID
	if _, err := s.Ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
		AggregateType: enums.AggregatePickup,
		AggregateID:   pickup.ID,
		ActorUserID:   &actor,
		Type:          enums.LedgerEventPickupSubmitted,
		AmountCents:   estimated,
		Metadata: map[string]any{
			"condition":     pickup.Condition,
			"photo_count":   len(pickup.Photos),
			"deposit_cents": pickup.DepositCents,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger event")
	}

	var scheduled *string
	if pickup.ScheduledAt != nil {
		formatted := pickup.ScheduledAt.Format(time.RFC3339)
		scheduled = &formatted
	}
	return s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPickupSubmitted,
		AggregateType: enums.AggregatePickup,
		AggregateID:   pickup.ID,
		Actor:         &outbox.ActorRef{UserID: pickup.UserID, Role: enums.UserRoleCustomer},
		Data: payloads.PickupSubmittedEvent{
			PickupID:    pickup.ID,
			UserID:      pickup.UserID,
			BrandID:     pickup.BrandID,
			BrandName:   pickup.BrandName,
			ModelText:   pickup.ModelText,
			Condition:   pickup.Condition,
			PhotoCount:  len(pickup.Photos),
			ScheduledAt: scheduled,
		},
	})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
