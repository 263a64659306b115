package allocation

// Instrument is a model portfolio constituent.
type Instrument struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Segment is a leaf of the model universe: a bucket (optionally narrowed to
// a sub-bucket) and the instruments that carry its weight.
type Segment struct {
	Bucket      Bucket
	Sub         string
	Rationale   string
	Instruments []Instrument
}

// Key identifies the segment, e.g. "equity_large_cap" or "cash".
func (s Segment) Key() string {
	if s.Sub == "" {
		return string(s.Bucket)
	}
	return string(s.Bucket) + "_" + s.Sub
}

// Universe is the configurable model universe targets are spread over.
type Universe []Segment

// DefaultUniverse returns the built-in model universe.
func DefaultUniverse() Universe {
	return Universe{
		{
			Bucket:    BucketEquity,
			Sub:       LargeCap,
			Rationale: "Large cap stability and growth",
			Instruments: []Instrument{
				{"RELIANCE.NS", "Reliance Industries"},
				{"TCS.NS", "Tata Consultancy Services"},
				{"HDFCBANK.NS", "HDFC Bank"},
				{"INFY.NS", "Infosys"},
			},
		},
		{
			Bucket:    BucketEquity,
			Sub:       MidCap,
			Rationale: "Mid cap growth exposure",
			Instruments: []Instrument{
				{"MPHASIS.NS", "Mphasis"},
				{"LALPATHLAB.NS", "Dr. Lal PathLabs"},
			},
		},
		{
			Bucket:    BucketEquity,
			Sub:       SmallCap,
			Rationale: "Small cap return potential",
			Instruments: []Instrument{
				{"ROUTE.NS", "Route Mobile"},
				{"VAIBHAVGBL.NS", "Vaibhav Global"},
			},
		},
		{
			Bucket:      BucketDebt,
			Sub:         Government,
			Rationale:   "Safe haven and interest rate exposure",
			Instruments: []Instrument{{"^TNX", "10-Year Treasury"}},
		},
		{
			Bucket:      BucketDebt,
			Sub:         Corporate,
			Rationale:   "Higher yield with moderate risk",
			Instruments: []Instrument{{"LQD", "Investment Grade Corporate Bonds"}},
		},
		{
			Bucket:      BucketGold,
			Rationale:   "Crisis hedging and inflation protection",
			Instruments: []Instrument{{"GC=F", "Gold Futures"}},
		},
		{
			Bucket:      BucketCash,
			Rationale:   "Liquidity and opportunity reserves",
			Instruments: []Instrument{{"CASH", "Cash and Cash Equivalents"}},
		},
	}
}

// segmentShare returns the share of its bucket a segment receives.
// Segments without a sub-bucket take the whole bucket.
func (t Tables) segmentShare(seg Segment, tolerance RiskTolerance) float64 {
	switch {
	case seg.Sub == "":
		return 1
	case seg.Bucket == BucketEquity:
		return t.EquitySplit[tolerance][seg.Sub]
	case seg.Bucket == BucketDebt:
		return t.DebtSplit[seg.Sub]
	}
	return 0
}
