package orders

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/revo-backend/api/validators"
	"github.com/angelmondragon/revo-backend/internal/checkout"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/money"
	"github.com/angelmondragon/revo-backend/pkg/types"
)

// shippingAddressRequest accepts the storefront's address shape, including
// the street/address, postalCode/zipCode and province/state aliases.
type shippingAddressRequest struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Street     string `json:"street"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	ZipCode    string `json:"zipCode"`
	Country    string `json:"country"`
}

func (s *shippingAddressRequest) toAddress() (*types.Address, error) {
	if s == nil {
		return nil, nil
	}
	addr := types.Address{
		Name:       s.FullName,
		Phone:      s.Phone,
		Line1:      firstNonBlank(s.Street, s.Address),
		City:       s.City,
		State:      firstNonBlank(s.Province, s.State),
		PostalCode: firstNonBlank(s.PostalCode, s.ZipCode),
		Country:    countryCode(s.Country),
	}.Normalize()

	missing := []string{}
	if addr.Line1 == "" {
		missing = append(missing, "street")
	}
	if addr.City == "" {
		missing = append(missing, "city")
	}
	if addr.PostalCode == "" {
		missing = append(missing, "postalCode")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "incomplete shipping address").WithDetails(map[string]any{"missing": missing})
	}
	return &addr, nil
}

type cartCheckoutRequest struct {
	ShippingAddress *shippingAddressRequest `json:"shippingAddress"`
}

type explicitItemRequest struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gt=0"`

	// Storefront display fields, accepted and ignored.
	Image     string   `json:"image,omitempty"`
	Brand     string   `json:"brand,omitempty"`
	Model     string   `json:"model,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Reviews   *int     `json:"reviews,omitempty"`
	Location         string           `json:"location,omitempty"`
	OriginalPrice    *decimal.Decimal `json:"originalPrice,omitempty"`
	Highlights       []string         `json:"highlights,omitempty"`
	CityAvailability []string         `json:"cityAvailability,omitempty"`
	UpdatedAt        *int64           `json:"updatedAt,omitempty"`
}

type explicitCheckoutRequest struct {
	Items           []explicitItemRequest   `json:"items" validate:"required,min=1,dive"`
	Total           string                  `json:"total"`
	PaymentMethod   string                  `json:"paymentMethod"`
	Timestamp       string                  `json:"timestamp,omitempty"`
	ShippingAddress *shippingAddressRequest `json:"shippingAddress"`
}

func (p explicitCheckoutRequest) toInput() (checkout.ExplicitCheckoutInput, error) {
	method, err := enums.ParsePaymentMethod(p.PaymentMethod)
	if err != nil {
		return checkout.ExplicitCheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid paymentMethod")
	}
	addr, err := p.ShippingAddress.toAddress()
	if err != nil {
		return checkout.ExplicitCheckoutInput{}, err
	}

	input := checkout.ExplicitCheckoutInput{
		Items:           make([]checkout.ExplicitItem, 0, len(p.Items)),
		PaymentMethod:   method,
		ShippingAddress: addr,
	}
	for i, item := range p.Items {
		if item.ID == uuid.Nil {
			return checkout.ExplicitCheckoutInput{}, pkgerrors.New(pkgerrors.CodeValidation, "item id is required").WithDetails(map[string]any{"index": i})
		}
		input.Items = append(input.Items, checkout.ExplicitItem{
			ProductID:  item.ID,
			Name:       item.Name,
			PriceCents: money.FromMajor(item.Price),
			Quantity:   item.Quantity,
		})
	}
	if total := strings.TrimSpace(p.Total); total != "" {
		parsed, err := decimal.NewFromString(strings.TrimPrefix(total, "$"))
		if err != nil {
			return checkout.ExplicitCheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid total")
		}
		cents := money.FromMajor(parsed)
		input.ClientTotalCents = &cents
	}
	return input, nil
}

type adminUpdateRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
}

// decodeOptionalJSONBody treats an empty body as an empty object.
func decodeOptionalJSONBody(r *http.Request, dest any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return validators.DecodeJSONBody(r, dest)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func countryCode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "canada":
		return "CA"
	case "united states", "united states of america", "usa":
		return "US"
	}
	return value
}
