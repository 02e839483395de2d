package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/simtrade/internal/models"
)

// RawDataSource is the upstream provider of unprocessed data.
//
// FetchBars returns bars for [start, end] inclusive; an error classified as
// common.KindNotFound means the provider has no data for the request.
type RawDataSource interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time, freq models.Frequency) ([]models.Bar, error)
	FetchFundamentals(ctx context.Context, symbol string) ([]models.FundamentalRecord, error)
}
