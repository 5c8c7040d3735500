package domain

// Market represents a Polymarket prediction market as returned by
// discovery, before binary-pair filtering.
type Market struct {
	ID        string
	Question  string
	Slug      string
	AssetIDs  []string // ERC-1155 outcome token IDs (76-digit strings)
	Liquidity float64
	Active    bool
	Closed    bool
}

// MarketPair is a tradable binary market. YesAsset and NoAsset are the
// two outcome-token IDs; the engine tracks prices and trades on each
// asset independently.
type MarketPair struct {
	YesAsset  string
	NoAsset   string
	Question  string
	Liquidity float64
}
