package enums

// OrderSource records which checkout path produced an order.
type OrderSource string

const (
	OrderSourceCart     OrderSource = "cart"
	OrderSourceExplicit OrderSource = "explicit"
)

func (s OrderSource) String() string {
	return string(s)
}
