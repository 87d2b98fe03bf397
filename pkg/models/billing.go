package models

// CheckoutRequest selects a Luna minute pack
type CheckoutRequest struct {
	PackID string `json:"pack_id" validate:"required,oneof=15min 30min 60min monthly"`
}

// CheckoutResponse contains the hosted payment page
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}


// PackResponse describes a Luna minute pack on sale
type PackResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Minutes  int     `json:"minutes"`
	PriceEUR float64 `json:"price_eur"`
}
