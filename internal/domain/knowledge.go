package domain

// KnowledgeBase is the ground truth responses are checked against.
// It is loaded once at startup and never modified afterwards.
type KnowledgeBase struct {
	Policies Policies  `json:"policies" mapstructure:"policies" validate:"required"`
	Products []Product `json:"products" mapstructure:"products" validate:"required,min=1,dive"`
}

// Policies groups the store policies
type Policies struct {
	Refund   RefundPolicy   `json:"refund" mapstructure:"refund" validate:"required"`
	Shipping ShippingPolicy `json:"shipping" mapstructure:"shipping" validate:"required"`
	Return   ReturnPolicy   `json:"return" mapstructure:"return" validate:"required"`
}

// RefundPolicy holds the refund window
type RefundPolicy struct {
	Days       int      `json:"days" mapstructure:"days" validate:"gt=0"`
	Conditions []string `json:"conditions,omitempty" mapstructure:"conditions"`
	Exceptions []string `json:"exceptions,omitempty" mapstructure:"exceptions"`
}

// ShippingPolicy holds the free shipping threshold
type ShippingPolicy struct {
	FreeThreshold int     `json:"freeThreshold" mapstructure:"freeThreshold" validate:"gt=0"`
	Standard      string  `json:"standard,omitempty" mapstructure:"standard"`
	ExpressCost   float64 `json:"expressCost,omitempty" mapstructure:"expressCost" validate:"gte=0"`
}

// ReturnPolicy holds the return window
type ReturnPolicy struct {
	Days       int      `json:"days" mapstructure:"days" validate:"gt=0"`
	Conditions []string `json:"conditions,omitempty" mapstructure:"conditions"`
}

// Product is a catalog entry; Name is matched case-insensitively in responses
type Product struct {
	Name      string  `json:"name" mapstructure:"name" validate:"required"`
	Price     float64 `json:"price" mapstructure:"price" validate:"gte=0"`
	Available bool    `json:"available" mapstructure:"available"`
}
