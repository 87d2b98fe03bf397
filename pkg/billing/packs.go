package billing

// Pack is a purchasable bundle of Luna minutes
type Pack struct {
	ID       string
	Name     string
	Minutes  int
	PriceEUR float64
	// Recurring packs have a subscription price in Stripe, which a one-off
	// payment checkout cannot use
	Recurring bool
}

// AmountCents is the pack price in euro cents
func (p Pack) AmountCents() int64 {
	return int64(p.PriceEUR*100 + 0.5)
}

var packs = []Pack{
	{ID: "15min", Name: "15 minuti con Luna", Minutes: 15, PriceEUR: 2.99},
	{ID: "30min", Name: "30 minuti con Luna", Minutes: 30, PriceEUR: 4.99},
	{ID: "60min", Name: "60 minuti con Luna", Minutes: 60, PriceEUR: 8.99},
	{ID: "monthly", Name: "Abbonamento mensile Luna (5h)", Minutes: 300, PriceEUR: 19.99, Recurring: true},
}

// Packs lists the minute packs on sale
func Packs() []Pack {
	out := make([]Pack, len(packs))
	copy(out, packs)
	return out
}

// PackByID looks up a pack
func PackByID(id string) (Pack, bool) {
	for _, p := range packs {
		if p.ID == id {
			return p, true
		}
	}
	return Pack{}, false
}
