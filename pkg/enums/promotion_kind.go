package enums

// PromotionKind describes how a promotion discounts the base price.
type PromotionKind string

const (
	PromotionKindPercentage PromotionKind = "percentage"
	PromotionKindFixed      PromotionKind = "fixed"
)

var promotionKinds = []PromotionKind{PromotionKindPercentage, PromotionKindFixed}

func (k PromotionKind) String() string { return string(k) }

func (k PromotionKind) IsValid() bool { return known(k, promotionKinds) }

func ParsePromotionKind(value string) (PromotionKind, error) {
	return parse("promotion kind", value, promotionKinds, true)
}

func (x *PromotionKind) UnmarshalJSON(data []byte) error {
	return decodeCanonical(data, x, promotionKinds)
}
