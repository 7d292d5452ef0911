package models

// PriceResult source labels.
const (
	SourceCache        = "cache"
	SourceExact        = "exact"
	SourceInterpolated = "interpolated"
	SourceExternal     = "external"
)

// PricePoint is one persisted daily price. At most one row exists per
// (token, network, date); date is 00:00:00 UTC of the day in Unix seconds.
type PricePoint struct {
	Token   string  `json:"token"`
	Network string  `json:"network"`
	Date    int64   `json:"date"`
	Price   float64 `json:"price"`
}

// PriceQuery asks for the USD price of a token at an arbitrary timestamp.
// The timestamp does not have to align to a day boundary.
type PriceQuery struct {
	Token     string `json:"token"`
	Network   string `json:"network"`
	Timestamp int64  `json:"timestamp"`
}

type PriceResult struct {
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}
