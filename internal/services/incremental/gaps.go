package incremental

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/interfaces"
	"github.com/bobmcallan/simtrade/internal/models"
)

// Calendar decides which dates are trading days. Production runs should use
// a holiday-aware calendar; with WeekdayCalendar every weekday exchange
// holiday is reported as a gap on every run.
type Calendar interface {
	IsTradingDay(t time.Time) bool
}

// WeekdayCalendar treats every Monday to Friday as a trading day.
type WeekdayCalendar struct{}

func (WeekdayCalendar) IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// HolidayCalendar is WeekdayCalendar minus a fixed set of exchange holidays.
type HolidayCalendar struct {
	holidays map[string]bool
}

// NewHolidayCalendar builds a calendar from YYYY-MM-DD dates. Unparseable
// entries are returned as an error.
func NewHolidayCalendar(dates []string) (*HolidayCalendar, error) {
	c := &HolidayCalendar{holidays: make(map[string]bool, len(dates))}
	for _, s := range dates {
		d, err := time.Parse(common.DateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", s, err)
		}
		c.holidays[models.DateKey(d)] = true
	}
	return c, nil
}

func (c *HolidayCalendar) IsTradingDay(t time.Time) bool {
	return WeekdayCalendar{}.IsTradingDay(t) && !c.holidays[models.DateKey(t)]
}

// TradingDays lists the trading days in [start, end].
func TradingDays(cal Calendar, start, end time.Time) []time.Time {
	var days []time.Time
	for d := models.TruncateDay(start); !d.After(models.TruncateDay(end)); d = d.AddDate(0, 0, 1) {
		if cal.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// GapDetector finds runs of trading days with no stored bar.
type GapDetector struct {
	bars     interfaces.BarStore
	calendar Calendar
	logger   *common.Logger
}

// NewGapDetector creates a gap detector; a nil calendar means WeekdayCalendar.
func NewGapDetector(bars interfaces.BarStore, calendar Calendar, logger *common.Logger) *GapDetector {
	if calendar == nil {
		calendar = WeekdayCalendar{}
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &GapDetector{bars: bars, calendar: calendar, logger: logger}
}

// Detect compares the trading days in [start, end] with the stored daily
// bars and merges consecutive missing days into gaps. Days before the
// symbol's first stored bar are not gaps, so a symbol with no stored bars has
// none.
func (d *GapDetector) Detect(ctx context.Context, symbol string, freq models.Frequency, start, end time.Time) ([]models.Gap, error) {
	if freq != models.Freq1d {
		return nil, common.Errorf(common.KindValidation, "detect_gaps", symbol, "gap detection supports daily bars only, got %q", freq)
	}
	if end.Before(start) {
		return nil, nil
	}

	stored, err := d.bars.TradeDates(ctx, symbol, freq, start, end)
	if err != nil {
		return nil, common.NewInternalError("detect_gaps", symbol, err)
	}
	have := make(map[string]bool, len(stored))
	for _, t := range stored {
		have[models.DateKey(t)] = true
	}

	from, err := d.firstListed(ctx, symbol, freq, start, stored)
	if err != nil {
		return nil, common.NewInternalError("detect_gaps", symbol, err)
	}
	if from.IsZero() {
		return nil, nil
	}

	var gaps []models.Gap
	var current *models.Gap
	for _, day := range TradingDays(d.calendar, from, end) {
		if have[models.DateKey(day)] {
			current = nil
			continue
		}
		if current == nil {
			gaps = append(gaps, models.Gap{Symbol: symbol, Frequency: freq, Start: day})
			current = &gaps[len(gaps)-1]
		}
		current.End = day
		current.TradingDays++
	}

	for i := range gaps {
		g := &gaps[i]
		g.CalendarDays = int(g.End.Sub(g.Start).Hours()/24) + 1
		g.Severity = models.GapSeverity(g.CalendarDays)
	}

	if len(gaps) > 0 {
		d.logger.Info().
			Str("symbol", symbol).
			Str("start", models.DateKey(start)).
			Str("end", models.DateKey(end)).
			Int("gaps", len(gaps)).
			Msg("Data gaps detected")
	}
	return gaps, nil
}

// firstListed returns where gap detection starts: start when the symbol has a
// bar before it, otherwise the first stored bar in the window. It is zero when
// nothing is stored up to the window's end.
func (d *GapDetector) firstListed(ctx context.Context, symbol string, freq models.Frequency, start time.Time, stored []time.Time) (time.Time, error) {
	before, err := d.bars.TradeDates(ctx, symbol, freq, time.Time{}, models.TruncateDay(start).AddDate(0, 0, -1))
	if err != nil {
		return time.Time{}, err
	}
	if len(before) > 0 {
		return start, nil
	}
	if len(stored) == 0 {
		return time.Time{}, nil
	}
	first := stored[0]
	for _, t := range stored[1:] {
		if t.Before(first) {
			first = t
		}
	}
	return first, nil
}
