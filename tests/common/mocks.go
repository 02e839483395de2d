package common

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/models"
)

// MockDataSource implements RawDataSource for testing
type MockDataSource struct {
	mu sync.Mutex

	Bars         map[string][]models.Bar
	Fundamentals map[string][]models.FundamentalRecord
	BarErrors    map[string]error
	FundErrors   map[string]error

	FetchBarsCalls int
	FetchFundCalls int
	Requests       []FetchRequest
}

// FetchRequest records one FetchBars call.
type FetchRequest struct {
	Symbol    string
	Start     time.Time
	End       time.Time
	Frequency models.Frequency
}

// NewMockDataSource creates a mock data source
func NewMockDataSource() *MockDataSource {
	return &MockDataSource{
		Bars:         make(map[string][]models.Bar),
		Fundamentals: make(map[string][]models.FundamentalRecord),
		BarErrors:    make(map[string]error),
		FundErrors:   make(map[string]error),
	}
}

// FetchBars returns the configured bars for symbol within [start, end].
func (m *MockDataSource) FetchBars(ctx context.Context, symbol string, start, end time.Time, freq models.Frequency) ([]models.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchBarsCalls++
	m.Requests = append(m.Requests, FetchRequest{Symbol: symbol, Start: start, End: end, Frequency: freq})

	if err := m.BarErrors[symbol]; err != nil {
		return nil, err
	}
	var out []models.Bar
	for _, b := range m.Bars[symbol] {
		d := models.TruncateDay(b.TradeDate)
		if d.Before(models.TruncateDay(start)) || d.After(models.TruncateDay(end)) {
			continue
		}
		b.Frequency = freq
		out = append(out, b)
	}
	return out, nil
}

// FetchFundamentals returns the configured filings for symbol.
func (m *MockDataSource) FetchFundamentals(ctx context.Context, symbol string) ([]models.FundamentalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchFundCalls++
	if err := m.FundErrors[symbol]; err != nil {
		return nil, err
	}
	return m.Fundamentals[symbol], nil
}

// SetBars replaces the bars served for symbol.
func (m *MockDataSource) SetBars(symbol string, bars []models.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bars[symbol] = bars
}

// SetBarError makes FetchBars fail for symbol.
func (m *MockDataSource) SetBarError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BarErrors[symbol] = err
}

// RequestsFor returns the recorded FetchBars calls for symbol.
func (m *MockDataSource) RequestsFor(symbol string) []FetchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FetchRequest
	for _, r := range m.Requests {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out
}

// DailyBars builds consecutive weekday bars for symbol starting at start,
// one per close, with open/high/low bracketing the close.
func DailyBars(symbol string, start time.Time, closes ...float64) []models.Bar {
	bars := make([]models.Bar, 0, len(closes))
	d := models.TruncateDay(start)
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		b := models.NewBar(symbol, d, models.DefaultBarDefaults())
		b.Open, b.High, b.Low, b.Close = c, c*1.01, c*0.99, c
		b.Volume = 1000
		bars = append(bars, b)
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

// MemoryStorage implements StorageManager in memory for testing.
type MemoryStorage struct {
	mu           sync.Mutex
	bars         map[models.BarKey]models.Bar
	fundamentals map[string]map[string]models.FundamentalRecord
	statuses     map[string]models.SyncStatus
	stocks       map[string]models.Stock

	// UpsertErr, when set, fails every bar write.
	UpsertErr   error
	UpsertCalls int
}

// NewMemoryStorage creates an empty in-memory storage manager.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		bars:         make(map[models.BarKey]models.Bar),
		fundamentals: make(map[string]map[string]models.FundamentalRecord),
		statuses:     make(map[string]models.SyncStatus),
		stocks:       make(map[string]models.Stock),
	}
}

func (s *MemoryStorage) BarStore() interfaces.BarStore {
	return (*memBars)(s)
}

func (s *MemoryStorage) FundamentalStore() interfaces.FundamentalStore {
	return (*memFundamentals)(s)
}

func (s *MemoryStorage) SyncStatusStore() interfaces.SyncStatusStore {
	return (*memStatuses)(s)
}

func (s *MemoryStorage) StockStore() interfaces.StockStore {
	return (*memStocks)(s)
}

func (s *MemoryStorage) Backend() string {
	return "memory"
}

func (s *MemoryStorage) Close() error {
	return nil
}

// Bar returns the stored bar for symbol/date/freq.
func (s *MemoryStorage) Bar(symbol, date string, freq models.Frequency) (models.Bar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bars[models.BarKey{Symbol: symbol, TradeDate: date, Frequency: freq}]
	return b, ok
}

// BarCount returns the number of stored bars.
func (s *MemoryStorage) BarCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars)
}

type memBars MemoryStorage

func (s *memBars) UpsertBars(ctx context.Context, bars []models.Bar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertCalls++
	if s.UpsertErr != nil {
		return 0, s.UpsertErr
	}
	for _, b := range bars {
		s.bars[b.Key()] = b
	}
	return len(bars), nil
}

func (s *memBars) LatestDate(ctx context.Context, symbol string, freq models.Frequency) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	found := false
	for k, b := range s.bars {
		if k.Symbol == symbol && k.Frequency == freq && (!found || b.TradeDate.After(latest)) {
			latest, found = b.TradeDate, true
		}
	}
	return latest, found, nil
}

func (s *memBars) QualityScores(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) (map[string]int, error) {
	bars, _ := s.GetBars(ctx, symbol, freq, start, end)
	out := make(map[string]int, len(bars))
	for _, b := range bars {
		out[models.DateKey(b.TradeDate)] = b.QualityScore
	}
	return out, nil
}

func (s *memBars) GetBars(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := models.DateKey(start), models.DateKey(end)
	var out []models.Bar
	for k, b := range s.bars {
		if k.Symbol == symbol && k.Frequency == freq && k.TradeDate >= lo && k.TradeDate <= hi {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (s *memBars) TradeDates(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]time.Time, error) {
	bars, _ := s.GetBars(ctx, symbol, freq, start, end)
	out := make([]time.Time, len(bars))
	for i, b := range bars {
		out[i] = b.TradeDate
	}
	return out, nil
}

type memFundamentals MemoryStorage

func (s *memFundamentals) UpsertFundamentals(ctx context.Context, records []models.FundamentalRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if s.fundamentals[r.Symbol] == nil {
			s.fundamentals[r.Symbol] = make(map[string]models.FundamentalRecord)
		}
		s.fundamentals[r.Symbol][models.DateKey(r.ReportDate)] = r
	}
	return len(records), nil
}

func (s *memFundamentals) GetFundamentals(ctx context.Context, symbol string) ([]models.FundamentalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FundamentalRecord
	for _, r := range s.fundamentals[symbol] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportDate.Before(out[j].ReportDate) })
	return out, nil
}

type memStatuses MemoryStorage

func statusKey(symbol string, freq models.Frequency) string {
	return fmt.Sprintf("%s|%s", symbol, freq)
}

func (s *memStatuses) SaveSyncStatus(ctx context.Context, status *models.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[statusKey(status.Symbol, status.Frequency)] = *status
	return nil
}

func (s *memStatuses) GetSyncStatus(ctx context.Context, symbol string, freq models.Frequency) (*models.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[statusKey(symbol, freq)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &st, nil
}

func (s *memStatuses) ListSyncStatus(ctx context.Context) ([]models.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SyncStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		return statusKey(out[i].Symbol, out[i].Frequency) < statusKey(out[j].Symbol, out[j].Frequency)
	})
	return out, nil
}

type memStocks MemoryStorage

func (s *memStocks) UpsertStocks(ctx context.Context, stocks []models.Stock) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range stocks {
		if st.Status == "" {
			st.Status = models.StockActive
		}
		s.stocks[st.Symbol] = st
	}
	return len(stocks), nil
}

func (s *memStocks) GetStock(ctx context.Context, symbol string) (*models.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stocks[symbol]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &st, nil
}

func (s *memStocks) ActiveSymbols(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for sym, st := range s.stocks {
		if st.Status == models.StockActive {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

var (
	_ interfaces.StorageManager = (*MemoryStorage)(nil)
	_ interfaces.RawDataSource  = (*MockDataSource)(nil)
)
