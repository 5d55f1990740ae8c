// Package marketdata unifies the upstream market-data providers behind one
// capability interface, normalizes their heterogeneous payloads, and keeps
// the dashboard alive with synthetic data when a provider degrades.
package marketdata

import "time"

// Quote is the normalized quote shape every adapter produces regardless of
// upstream format. The rest of the system depends on this contract.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	High52Week    float64 `json:"high52Week,omitempty"`
	Low52Week     float64 `json:"low52Week,omitempty"`
	MarketCap     float64 `json:"marketCap,omitempty"`
}

// SeriesPoint is one normalized OHLCV bar. Series are ordered ascending by
// timestamp and every point satisfies high >= max(open, close) and
// low <= min(open, close).
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// NewsItem is a normalized news feed entry.
type NewsItem struct {
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	URL            string    `json:"url,omitempty"`
	Source         string    `json:"source"`
	Published      time.Time `json:"published"`
	Sentiment      string    `json:"sentiment,omitempty"`
	RelevanceScore string    `json:"relevanceScore,omitempty"`
	Image          string    `json:"image,omitempty"`
}

// EarningsEntry is one company report in an earnings calendar.
type EarningsEntry struct {
	Date            string  `json:"date"` // YYYY-MM-DD
	Symbol          string  `json:"symbol"`
	EPSActual       float64 `json:"epsActual"`
	EPSEstimate     float64 `json:"epsEstimate"`
	Hour            string  `json:"hour"` // "bmo" | "amc" | "dmh"
	Quarter         int     `json:"quarter"`
	RevenueActual   int64   `json:"revenueActual"`
	RevenueEstimate int64   `json:"revenueEstimate"`
	Year            int     `json:"year"`
}

// EarningsCalendar is the normalized earnings-calendar response, entries
// ordered ascending by date.
type EarningsCalendar struct {
	Entries      []EarningsEntry `json:"earningsCalendar"`
	TotalResults int             `json:"totalResults"`
}

// CompanyProfile is the normalized company profile shape.
type CompanyProfile struct {
	Country           string  `json:"country"`
	Currency          string  `json:"currency"`
	Exchange          string  `json:"exchange"`
	IPO               string  `json:"ipo"`
	MarketCap         float64 `json:"marketCapitalization"`
	Name              string  `json:"name"`
	Phone             string  `json:"phone"`
	SharesOutstanding float64 `json:"shareOutstanding"`
	Ticker            string  `json:"ticker"`
	WebURL            string  `json:"weburl"`
	Logo              string  `json:"logo"`
	Industry          string  `json:"industry"`
}

// IndicatorPoint is one technical-indicator observation.
type IndicatorPoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Value float64 `json:"value"`
}

// IndicatorSeries is a normalized technical-indicator response, points
// ordered ascending by date.
type IndicatorSeries struct {
	Symbol   string           `json:"symbol"`
	Function string           `json:"function"`
	Interval string           `json:"interval"`
	Points   []IndicatorPoint `json:"timeSeries"`
}

// CompanyOverview is the normalized OVERVIEW fundamental shape. Upstream
// sends every figure as a string; numeric fields are parsed here so the
// dashboard never re-parses.
type CompanyOverview struct {
	Symbol                     string  `json:"symbol"`
	Name                       string  `json:"name"`
	Description                string  `json:"description"`
	Sector                     string  `json:"sector"`
	Industry                   string  `json:"industry"`
	MarketCap                  float64 `json:"marketCap"`
	PERatio                    float64 `json:"peRatio"`
	PEGRatio                   float64 `json:"pegRatio"`
	BookValue                  float64 `json:"bookValue"`
	DividendPerShare           float64 `json:"dividendPerShare"`
	DividendYield              float64 `json:"dividendYield"`
	EPS                        float64 `json:"eps"`
	RevenuePerShareTTM         float64 `json:"revenuePerShareTTM"`
	ProfitMargin               float64 `json:"profitMargin"`
	OperatingMarginTTM         float64 `json:"operatingMarginTTM"`
	ReturnOnAssetsTTM          float64 `json:"returnOnAssetsTTM"`
	ReturnOnEquityTTM          float64 `json:"returnOnEquityTTM"`
	QuarterlyEarningsGrowthYOY float64 `json:"quarterlyEarningsGrowthYOY"`
	QuarterlyRevenueGrowthYOY  float64 `json:"quarterlyRevenueGrowthYOY"`
	AnalystTargetPrice         float64 `json:"analystTargetPrice"`
	TrailingPE                 float64 `json:"trailingPE"`
	ForwardPE                  float64 `json:"forwardPE"`
	PriceToSalesRatioTTM       float64 `json:"priceToSalesRatioTTM"`
	PriceToBookRatio           float64 `json:"priceToBookRatio"`
	EVToRevenue                float64 `json:"evToRevenue"`
	EVToEBITDA                 float64 `json:"evToEBITDA"`
	Beta                       float64 `json:"beta"`
	Week52High                 float64 `json:"week52High"`
	Week52Low                  float64 `json:"week52Low"`
	Day50MovingAverage         float64 `json:"day50MovingAverage"`
	Day200MovingAverage        float64 `json:"day200MovingAverage"`
	SharesOutstanding          float64 `json:"sharesOutstanding"`
	DividendDate               string  `json:"dividendDate"`
	ExDividendDate             string  `json:"exDividendDate"`
}

// FiscalEntry is one fiscal-period record from an earnings history or
// financial statement, upstream field names preserved.
type FiscalEntry map[string]string

// Fundamentals is the normalized fundamental-data response. OVERVIEW calls
// populate Overview; earnings and statement calls populate the report
// slices (annualEarnings/quarterlyEarnings land in Annual/Quarterly too).
type Fundamentals struct {
	Symbol    string           `json:"symbol"`
	Function  string           `json:"function"`
	Overview  *CompanyOverview `json:"overview,omitempty"`
	Annual    []FiscalEntry    `json:"annualReports,omitempty"`
	Quarterly []FiscalEntry    `json:"quarterlyReports,omitempty"`
}

// RecommendationTrend is one month of analyst recommendation counts.
type RecommendationTrend struct {
	Symbol     string `json:"symbol"`
	Period     string `json:"period"` // YYYY-MM-DD
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
}

// PriceTarget is the normalized analyst price-target shape.
type PriceTarget struct {
	Symbol       string  `json:"symbol"`
	TargetHigh   float64 `json:"targetHigh"`
	TargetLow    float64 `json:"targetLow"`
	TargetMean   float64 `json:"targetMean"`
	TargetMedian float64 `json:"targetMedian"`
}

// Result is the envelope returned to callers. IsMockData is true exactly
// when Data came from the mock generator; real and synthetic records are
// never blended within one result.
type Result[T any] struct {
	Data             T      `json:"data"`
	IsMockData       bool   `json:"isMockData"`
	RateLimitMessage string `json:"rateLimitMessage,omitempty"`
}

// ok wraps live upstream data in a clean envelope.
func ok[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

// degraded wraps generator output, flagged as mock.
func degraded[T any](data T, message string) Result[T] {
	return Result[T]{Data: data, IsMockData: true, RateLimitMessage: message}
}

// Concrete envelope aliases used by the Provider interface; Go interfaces
// cannot declare generic methods.
type (
	QuoteResult        = Result[Quote]
	QuotesResult       = Result[[]Quote]
	SeriesResult       = Result[[]SeriesPoint]
	NewsResult         = Result[[]NewsItem]
	EarningsResult     = Result[EarningsCalendar]
	ProfileResult      = Result[CompanyProfile]
	IndicatorResult    = Result[IndicatorSeries]
	RecommendsResult   = Result[[]RecommendationTrend]
	PriceTargetResult  = Result[PriceTarget]
	FundamentalsResult = Result[Fundamentals]
)
