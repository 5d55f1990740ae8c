package marketdata

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Generator produces structurally valid synthetic data for every normalized
// shape. Consumers cannot tell mock from real data by shape, only by the
// IsMockData flag on the envelope.
type Generator struct {
	mu     sync.Mutex
	random *rand.Rand
	now    func() time.Time
}

// baseValue seeds plausible numbers for the blue-chip symbols the dashboard
// ships with; anything else falls back to a generic template.
type baseValue struct {
	Price     float64
	Name      string
	Industry  string
	IPO       string
	MarketCap float64
}

var baseValues = map[string]baseValue{
	"AAPL":  {Price: 175.43, Name: "Apple Inc", Industry: "Technology", IPO: "1980-12-12", MarketCap: 3.0e12},
	"GOOGL": {Price: 2847.52, Name: "Alphabet Inc Class A", Industry: "Technology", IPO: "2004-08-19", MarketCap: 1.8e12},
	"MSFT":  {Price: 378.85, Name: "Microsoft Corp", Industry: "Technology", IPO: "1986-03-13", MarketCap: 2.8e12},
	"TSLA":  {Price: 248.73, Name: "Tesla Inc", Industry: "Automotive", IPO: "2010-06-29", MarketCap: 8.0e11},
	"AMZN":  {Price: 3127.45, Name: "Amazon.com Inc", Industry: "Consumer Discretionary", IPO: "1997-05-15", MarketCap: 1.5e12},
}

var mostActiveSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "NFLX", "AMD", "INTC"}

// NewGenerator creates a generator. A zero seed randomizes from the clock;
// tests pass a fixed seed for reproducible values.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		random: rand.New(rand.NewSource(seed)),
		now:    time.Now,
	}
}

func (g *Generator) basePrice(symbol string) float64 {
	if base, exists := baseValues[strings.ToUpper(symbol)]; exists {
		return base.Price
	}
	return 100
}

// Quote produces a synthetic quote around the symbol's base price with a
// change within roughly ±5% and volume in the 1e5..1e7 band.
func (g *Generator) Quote(symbol string) Quote {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := g.basePrice(symbol)
	change := (g.random.Float64() - 0.5) * 10
	return Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         base + change,
		Change:        change,
		ChangePercent: (change / base) * 100,
		Volume:        g.random.Int63n(9_900_000) + 100_000,
		High52Week:    base * 1.2,
		Low52Week:     base * 0.8,
		MarketCap:     base * 1e9,
	}
}

// MostActive produces a synthetic most-actively-traded list: ten fixed
// symbols with prices in the 50..250 band.
func (g *Generator) MostActive() []Quote {
	g.mu.Lock()
	defer g.mu.Unlock()

	quotes := make([]Quote, 0, len(mostActiveSymbols))
	for _, symbol := range mostActiveSymbols {
		price := g.random.Float64()*200 + 50
		change := (g.random.Float64() - 0.5) * 10
		quotes = append(quotes, Quote{
			Symbol:        symbol,
			Price:         price,
			Change:        change,
			ChangePercent: (change / price) * 100,
			Volume:        g.random.Int63n(50_000_000) + 10_000_000,
		})
	}
	return quotes
}

// Series walks a random process backward from a random base price to build
// n internally consistent OHLC bars at the given step, ordered ascending.
func (g *Generator) Series(symbol string, n int, step time.Duration) []SeriesPoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n <= 0 {
		n = 50
	}
	if step <= 0 {
		step = 5 * time.Minute
	}

	now := g.now()
	price := 100 + g.random.Float64()*150
	points := make([]SeriesPoint, n)

	// Fill newest-first, then the slice index runs oldest-first.
	for i := n - 1; i >= 0; i-- {
		change := (g.random.Float64() - 0.5) * 5
		open := price - change
		close := price
		high := maxFloat(open, close) + g.random.Float64()*2
		low := minFloat(open, close) - g.random.Float64()*2
		if low < 1 {
			low = 1
		}
		points[i] = SeriesPoint{
			Timestamp: now.Add(-time.Duration(n-1-i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    g.random.Int63n(900_000) + 100_000,
		}
		price = open // walk backward
		if price < 5 {
			price = 5 + g.random.Float64()*5
		}
	}
	return points
}

// News produces synthetic headlines with recent timestamps, newest first.
func (g *Generator) News(limit int) []NewsItem {
	g.mu.Lock()
	defer g.mu.Unlock()

	templates := []NewsItem{
		{
			Title:     "Market Reaches New Heights Amid Tech Rally",
			Summary:   "Technology stocks continue to drive market gains as investors show confidence in AI and cloud computing sectors.",
			Source:    "Financial Times",
			Sentiment: "Positive",
		},
		{
			Title:     "Federal Reserve Signals Potential Rate Changes",
			Summary:   "Central bank officials hint at policy adjustments in response to evolving economic conditions.",
			Source:    "Reuters",
			Sentiment: "Neutral",
		},
		{
			Title:     "Energy Sector Shows Mixed Performance",
			Summary:   "Oil prices fluctuate as global demand patterns shift and renewable energy investments increase.",
			Source:    "Bloomberg",
			Sentiment: "Mixed",
		},
		{
			Title:     "Chipmakers Extend Gains on Data Center Demand",
			Summary:   "Semiconductor suppliers report order backlogs as hyperscalers expand capacity.",
			Source:    "MarketWatch",
			Sentiment: "Positive",
		},
		{
			Title:     "Retail Earnings Paint Uneven Consumer Picture",
			Summary:   "Discount chains outperform while discretionary categories soften ahead of the holiday quarter.",
			Source:    "CNBC",
			Sentiment: "Neutral",
		},
	}
	if limit <= 0 || limit > len(templates) {
		limit = len(templates)
	}

	now := g.now()
	items := make([]NewsItem, limit)
	for i := 0; i < limit; i++ {
		item := templates[i]
		item.Published = now.Add(-time.Duration(i*2+1) * 30 * time.Minute)
		items[i] = item
	}
	return items
}

// Earnings iterates every calendar day in [from, to] and includes a
// synthetic entry with ~30% probability per day, so cardinality is
// nondeterministic but bounded by the range. Entries are ascending by date.
func (g *Generator) Earnings(from, to time.Time) EarningsCalendar {
	g.mu.Lock()
	defer g.mu.Unlock()

	var entries []EarningsEntry
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if g.random.Float64() > 0.3 {
			continue
		}
		symbol := mostActiveSymbols[g.random.Intn(len(mostActiveSymbols))]
		entries = append(entries, EarningsEntry{
			Date:            day.Format("2006-01-02"),
			Symbol:          symbol,
			EPSActual:       roundCents(g.random.Float64()*5 + 1),
			EPSEstimate:     roundCents(g.random.Float64()*5 + 1),
			Hour:            "bmo",
			Quarter:         g.random.Intn(4) + 1,
			RevenueActual:   g.random.Int63n(90_000_000_000) + 10_000_000_000,
			RevenueEstimate: g.random.Int63n(90_000_000_000) + 10_000_000_000,
			Year:            day.Year(),
		})
	}
	return EarningsCalendar{Entries: entries, TotalResults: len(entries)}
}

// Profile returns the fixed profile for known symbols or a generic template
// interpolating the symbol into name and URL fields.
func (g *Generator) Profile(symbol string) CompanyProfile {
	symbol = strings.ToUpper(symbol)
	profile := CompanyProfile{
		Country:           "US",
		Currency:          "USD",
		Exchange:          "NASDAQ",
		IPO:               "2020-01-01",
		MarketCap:         1e11,
		Name:              fmt.Sprintf("%s Inc", symbol),
		Phone:             "15551234567",
		SharesOutstanding: 1e9,
		Ticker:            symbol,
		WebURL:            fmt.Sprintf("https://www.%s.com/", strings.ToLower(symbol)),
		Logo:              "https://static.finnhub.io/logo/87cb30d8-80df-11ea-8951-00000000092a.png",
		Industry:          "Technology",
	}
	if base, exists := baseValues[symbol]; exists {
		profile.Name = base.Name
		profile.Industry = base.Industry
		profile.IPO = base.IPO
		profile.MarketCap = base.MarketCap
		profile.SharesOutstanding = base.MarketCap / base.Price
	}
	return profile
}

// Indicator produces ~30 days of synthetic indicator values ascending by
// date, in the 100..150 band with small variation.
func (g *Generator) Indicator(function, symbol, interval string) IndicatorSeries {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	points := make([]IndicatorPoint, 0, 30)
	for i := 29; i >= 0; i-- {
		base := 100 + g.random.Float64()*50
		points = append(points, IndicatorPoint{
			Date:  now.AddDate(0, 0, -i).Format("2006-01-02"),
			Value: base + (g.random.Float64()-0.5)*10,
		})
	}
	return IndicatorSeries{
		Symbol:   strings.ToUpper(symbol),
		Function: function,
		Interval: interval,
		Points:   points,
	}
}

// Fundamentals produces a synthetic fundamental-data payload for the given
// function: a full overview for OVERVIEW, three fiscal years of records for
// the earnings and statement functions.
func (g *Generator) Fundamentals(function, symbol string) Fundamentals {
	g.mu.Lock()
	defer g.mu.Unlock()

	symbol = strings.ToUpper(symbol)
	result := Fundamentals{Symbol: symbol, Function: function}

	if function == "OVERVIEW" || function == "" {
		price := g.basePrice(symbol)
		eps := roundCents(price / (20 + g.random.Float64()*15))
		name := fmt.Sprintf("%s Inc", symbol)
		industry := "Technology"
		marketCap := price * 1e9
		if base, exists := baseValues[symbol]; exists {
			name = base.Name
			industry = base.Industry
			marketCap = base.MarketCap
		}
		result.Function = "OVERVIEW"
		result.Overview = &CompanyOverview{
			Symbol:              symbol,
			Name:                name,
			Description:         fmt.Sprintf("%s is a leading %s company.", name, strings.ToLower(industry)),
			Sector:              industry,
			Industry:            industry,
			MarketCap:           marketCap,
			PERatio:             roundCents(price / eps),
			PEGRatio:            roundCents(1 + g.random.Float64()),
			BookValue:           roundCents(price * 0.1),
			DividendPerShare:    roundCents(g.random.Float64()),
			DividendYield:       roundCents(g.random.Float64()*2) / 100,
			EPS:                 eps,
			RevenuePerShareTTM:  roundCents(price * 0.15),
			ProfitMargin:        roundCents(g.random.Float64()*30) / 100,
			ReturnOnEquityTTM:   roundCents(g.random.Float64()*40) / 100,
			AnalystTargetPrice:  roundCents(price * (1 + g.random.Float64()*0.2)),
			TrailingPE:          roundCents(price / eps),
			ForwardPE:           roundCents(price / eps * 0.9),
			Beta:                roundCents(0.8 + g.random.Float64()*0.8),
			Week52High:          roundCents(price * 1.2),
			Week52Low:           roundCents(price * 0.8),
			Day50MovingAverage:  roundCents(price * 0.98),
			Day200MovingAverage: roundCents(price * 0.92),
			SharesOutstanding:   marketCap / price,
			DividendDate:        g.now().AddDate(0, 2, 0).Format("2006-01-02"),
			ExDividendDate:      g.now().AddDate(0, 1, 0).Format("2006-01-02"),
		}
		return result
	}

	year := g.now().Year()
	for i := 0; i < 3; i++ {
		fiscalEnd := fmt.Sprintf("%d-12-31", year-1-i)
		entry := FiscalEntry{"fiscalDateEnding": fiscalEnd}
		switch function {
		case "EARNINGS":
			entry["reportedEPS"] = fmt.Sprintf("%.2f", g.random.Float64()*5+1)
		case "INCOME_STATEMENT":
			revenue := g.random.Int63n(300_000_000_000) + 50_000_000_000
			entry["totalRevenue"] = strconv.FormatInt(revenue, 10)
			entry["netIncome"] = strconv.FormatInt(revenue/4, 10)
		case "BALANCE_SHEET":
			assets := g.random.Int63n(300_000_000_000) + 100_000_000_000
			entry["totalAssets"] = strconv.FormatInt(assets, 10)
			entry["totalLiabilities"] = strconv.FormatInt(assets*2/3, 10)
		case "CASH_FLOW":
			cash := g.random.Int63n(100_000_000_000) + 20_000_000_000
			entry["operatingCashflow"] = strconv.FormatInt(cash, 10)
			entry["netIncome"] = strconv.FormatInt(cash*9/10, 10)
		}
		result.Annual = append(result.Annual, entry)
	}
	return result
}

// Recommendations produces twelve months of analyst counts, newest first.
func (g *Generator) Recommendations(symbol string) []RecommendationTrend {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	trends := make([]RecommendationTrend, 0, 12)
	for i := 0; i < 12; i++ {
		period := now.AddDate(0, -i, 0).Format("2006-01-02")
		trends = append(trends, RecommendationTrend{
			Symbol:     strings.ToUpper(symbol),
			Period:     period,
			StrongBuy:  g.random.Intn(10),
			Buy:        g.random.Intn(15),
			Hold:       g.random.Intn(8),
			Sell:       g.random.Intn(3),
			StrongSell: g.random.Intn(2),
		})
	}
	return trends
}

// PriceTarget produces a synthetic analyst price target around a random base.
func (g *Generator) PriceTarget(symbol string) PriceTarget {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := 150 + g.random.Float64()*100
	return PriceTarget{
		Symbol:       strings.ToUpper(symbol),
		TargetHigh:   roundCents(base * 1.2),
		TargetLow:    roundCents(base * 0.8),
		TargetMean:   roundCents(base * 1.05),
		TargetMedian: roundCents(base),
	}
}

func roundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
