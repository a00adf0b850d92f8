package tradein

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/revo-backend/api/validators"
	tradeinsvc "github.com/angelmondragon/revo-backend/internal/tradein"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/money"
	"github.com/angelmondragon/revo-backend/pkg/types"
)

const (
	multipartMemory = 8 << 20
	photosField     = "photos"
	maxTextField    = 2000
)

// pickupJSONRequest is the photo-less JSON form of a submission.
type pickupJSONRequest struct {
	BrandID        *uuid.UUID       `json:"brand_id"`
	BrandName      *string          `json:"brand_name"`
	ModelText      string           `json:"model_text"`
	Storage        *string          `json:"storage"`
	Condition      string           `json:"condition"`
	AdditionalInfo *string          `json:"additional_info"`
	Notes          *string          `json:"notes"`
	Address        *types.Address   `json:"address"`
	AddressText    *string          `json:"address_text"`
	ScheduledAt    *time.Time       `json:"scheduled_at"`
	Deposit        *decimal.Decimal `json:"deposit"`
	EstimatedPrice *decimal.Decimal `json:"estimated_price"`
}

func (p pickupJSONRequest) toInput() tradeinsvc.SubmitPickupInput {
	input := tradeinsvc.SubmitPickupInput{
		BrandID:        p.BrandID,
		BrandName:      p.BrandName,
		ModelText:      p.ModelText,
		Storage:        p.Storage,
		Condition:      p.Condition,
		AdditionalInfo: p.AdditionalInfo,
		Notes:          p.Notes,
		Address:        p.Address,
		AddressText:    p.AddressText,
		ScheduledAt:    p.ScheduledAt,
	}
	if p.Deposit != nil {
		input.DepositCents = money.FromMajor(*p.Deposit)
	}
	if p.EstimatedPrice != nil {
		cents := money.FromMajor(*p.EstimatedPrice)
		input.EstimatedPriceCents = &cents
	}
	return input
}

// parsePickupRequest reads either a multipart form with photos or a JSON
// body. The returned closer releases the multipart temp files.
func parsePickupRequest(r *http.Request) (tradeinsvc.SubmitPickupInput, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var payload pickupJSONRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return tradeinsvc.SubmitPickupInput{}, noop, err
		}
		return payload.toInput(), noop, nil
	}
	if mediaType != "multipart/form-data" {
		return tradeinsvc.SubmitPickupInput{}, noop, pkgerrors.New(pkgerrors.CodeValidation, "expected multipart/form-data or application/json")
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return tradeinsvc.SubmitPickupInput{}, noop, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large")
		}
		return tradeinsvc.SubmitPickupInput{}, noop, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	form := r.MultipartForm
	cleanup := func() { _ = form.RemoveAll() }

	input, err := formInput(form)
	if err != nil {
		return tradeinsvc.SubmitPickupInput{}, cleanup, err
	}

	files := []io.Closer{}
	release := func() {
		for _, f := range files {
			_ = f.Close()
		}
		cleanup()
	}
	for _, header := range form.File[photosField] {
		photo, closer, err := openPhoto(header)
		if err != nil {
			return tradeinsvc.SubmitPickupInput{}, release, err
		}
		files = append(files, closer)
		input.Photos = append(input.Photos, photo)
	}
	return input, release, nil
}

func formInput(form *multipart.Form) (tradeinsvc.SubmitPickupInput, error) {
	value := func(key string) string {
		if vals := form.Value[key]; len(vals) > 0 {
			return validators.SanitizeString(vals[0], maxTextField)
		}
		return ""
	}
	optional := func(key string) *string {
		if v := value(key); v != "" {
			return &v
		}
		return nil
	}

	input := tradeinsvc.SubmitPickupInput{
		BrandName:      optional("brand_name"),
		ModelText:      value("model_text"),
		Storage:        optional("storage"),
		Condition:      value("condition"),
		AdditionalInfo: optional("additional_info"),
		Notes:          optional("notes"),
		AddressText:    optional("address_text"),
	}

	if raw := value("brand_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return input, fieldError("brand_id", err)
		}
		input.BrandID = &id
	}
	if raw := value("address"); raw != "" {
		var addr types.Address
		if err := json.Unmarshal([]byte(raw), &addr); err != nil {
			return input, fieldError("address", err)
		}
		input.Address = &addr
	}
	if raw := value("scheduled_at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return input, fieldError("scheduled_at", err)
		}
		input.ScheduledAt = &at
	}
	if raw := value("deposit"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return input, fieldError("deposit", err)
		}
		input.DepositCents = money.FromMajor(amount)
	}
	if raw := value("estimated_price"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return input, fieldError("estimated_price", err)
		}
		cents := money.FromMajor(amount)
		input.EstimatedPriceCents = &cents
	}
	return input, nil
}

func openPhoto(header *multipart.FileHeader) (tradeinsvc.Photo, io.Closer, error) {
	file, err := header.Open()
	if err != nil {
		return tradeinsvc.Photo{}, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open photo")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			_ = file.Close()
			return tradeinsvc.Photo{}, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rewind photo")
		}
	}
	return tradeinsvc.Photo{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, file, nil
}

func fieldError(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form field").WithDetails(map[string]any{"field": field})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) || strings.Contains(err.Error(), "too large")
}

func maxRequestBytes(limits tradeinsvc.PhotoLimits) int64 {
	return int64(limits.MaxPhotos)*limits.MaxBytes + multipartMemory
}

func parseAction(r *http.Request) (string, error) {
	var payload struct {
		Action string `json:"action" validate:"required"`
	}
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return "", err
	}
	return payload.Action, nil
}
