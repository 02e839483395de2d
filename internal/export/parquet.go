// Package export writes stored bars to columnar files.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/models"
)

// Row is one exported bar. Missing numbers are written as nulls.
type Row struct {
	Symbol        string   `parquet:"symbol"`
	Market        string   `parquet:"market"`
	TradeDate     string   `parquet:"trade_date"`
	Frequency     string   `parquet:"frequency"`
	Open          *float64 `parquet:"open,optional"`
	High          *float64 `parquet:"high,optional"`
	Low           *float64 `parquet:"low,optional"`
	Close         *float64 `parquet:"close,optional"`
	Volume        *float64 `parquet:"volume,optional"`
	Amount        *float64 `parquet:"amount,optional"`
	PreClose      *float64 `parquet:"preclose,optional"`
	HighLimit     *float64 `parquet:"high_limit,optional"`
	LowLimit      *float64 `parquet:"low_limit,optional"`
	ChangeAmount  *float64 `parquet:"change_amount,optional"`
	ChangePercent *float64 `parquet:"change_percent,optional"`
	Amplitude     *float64 `parquet:"amplitude,optional"`
	IsLimitUp     bool     `parquet:"is_limit_up"`
	IsLimitDown   bool     `parquet:"is_limit_down"`
	MA5           *float64 `parquet:"ma5,optional"`
	MA10          *float64 `parquet:"ma10,optional"`
	MA20          *float64 `parquet:"ma20,optional"`
	MA60          *float64 `parquet:"ma60,optional"`
	TotalShares   *float64 `parquet:"total_shares,optional"`
	TotalValue    *float64 `parquet:"total_value,optional"`
	FloatValue    *float64 `parquet:"float_value,optional"`
	QualityScore  int32    `parquet:"quality_score"`
	Source        string   `parquet:"source"`
}

// ParquetExporter implements interfaces.BarExporter
type ParquetExporter struct {
	bars   interfaces.BarStore
	dir    string
	logger *common.Logger
}

// NewParquetExporter creates an exporter writing under dir.
func NewParquetExporter(bars interfaces.BarStore, dir string, logger *common.Logger) *ParquetExporter {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &ParquetExporter{bars: bars, dir: dir, logger: logger}
}

// Path returns <dir>/<freq>/<symbol>.parquet.
func (e *ParquetExporter) Path(symbol string, freq models.Frequency) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(symbol)
	return filepath.Join(e.dir, string(freq), name+".parquet")
}

// Export writes the stored bars in [start, end] and returns the file path and
// row count. No stored bars is a not-found error and no file is written.
func (e *ParquetExporter) Export(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) (string, int, error) {
	bars, err := e.bars.GetBars(ctx, symbol, freq, start, end)
	if err != nil {
		return "", 0, common.NewInternalError("export", symbol, err)
	}
	if len(bars) == 0 {
		return "", 0, common.NewNotFoundError("export", symbol, nil)
	}

	rows := make([]Row, len(bars))
	for i := range bars {
		rows[i] = toRow(&bars[i])
	}

	path := e.Path(symbol, freq)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, common.NewInternalError("export", symbol, fmt.Errorf("failed to create export dir: %w", err))
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", 0, common.NewInternalError("export", symbol, fmt.Errorf("failed to write %s: %w", path, err))
	}

	e.logger.Info().
		Str("symbol", symbol).
		Str("frequency", string(freq)).
		Str("path", path).
		Int("rows", len(rows)).
		Msg("Bars exported")
	return path, len(rows), nil
}

func toRow(b *models.Bar) Row {
	return Row{
		Symbol:        b.Symbol,
		Market:        b.Market,
		TradeDate:     models.DateKey(b.TradeDate),
		Frequency:     string(b.Frequency),
		Open:          opt(b.Open),
		High:          opt(b.High),
		Low:           opt(b.Low),
		Close:         opt(b.Close),
		Volume:        opt(b.Volume),
		Amount:        opt(b.Amount),
		PreClose:      opt(b.PreClose),
		HighLimit:     opt(b.HighLimit),
		LowLimit:      opt(b.LowLimit),
		ChangeAmount:  opt(b.ChangeAmount),
		ChangePercent: opt(b.ChangePercent),
		Amplitude:     opt(b.Amplitude),
		IsLimitUp:     b.IsLimitUp,
		IsLimitDown:   b.IsLimitDown,
		MA5:           opt(b.MA5),
		MA10:          opt(b.MA10),
		MA20:          opt(b.MA20),
		MA60:          opt(b.MA60),
		TotalShares:   opt(b.TotalShares),
		TotalValue:    opt(b.TotalValue),
		FloatValue:    opt(b.FloatValue),
		QualityScore:  int32(b.QualityScore),
		Source:        string(b.Source),
	}
}

func opt(v float64) *float64 {
	if models.IsMissing(v) {
		return nil
	}
	return &v
}

// Ensure ParquetExporter implements BarExporter
var _ interfaces.BarExporter = (*ParquetExporter)(nil)
