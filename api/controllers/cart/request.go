package cart

// AddLineRequest adds a catalog unit to the session's cart.
type AddLineRequest struct {
	UnitID   string `json:"unit_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=999"`
}

// AddBundleRequest adds every member of a catalog bundle as one bundle group.
type AddBundleRequest struct {
	BundleID string `json:"bundle_id" validate:"required"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=999"`
}
