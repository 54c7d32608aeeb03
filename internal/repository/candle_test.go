package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptosim/types"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var testInterval = types.OneMinute
var startTime = time.UnixMilli(0).UTC()
var endTime = startTime.Add(time.Minute * 5)

type mockCandlesRepository struct {
	sqlError error
	empty    bool
}

// recordingCandles remembers the last query it served.
type recordingCandles struct {
	mockCandlesRepository
	lastArgs *aggregateParams
}

func TestDatabase_GetAggregates(t *testing.T) {
	type args struct {
		assetId  int
		interval types.Interval
		start    time.Time
		end      time.Time
	}
	tests := []struct {
		name    string
		args    args
		want    []types.Candle
		empty   bool
		sqlErr  error
		wantErr error
	}{
		{"should throw ErrNoCandles on empty result", args{999, testInterval, startTime, endTime}, nil, true, nil, ErrNoCandles},
		{"should throw ErrNoCandles on no rows", args{999, testInterval, startTime, endTime}, nil, false, pgx.ErrNoRows, ErrNoCandles},
		{"should throw ErrIntervalNotSupported", args{999, types.Interval("7"), startTime, endTime}, nil, false, nil, ErrIntervalNotSupported},
		{"should return candles", args{999, testInterval, startTime, endTime}, mockCandles(startTime, endTime), false, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &Database{
				candles: mockCandlesRepository{
					sqlError: tt.sqlErr,
					empty:    tt.empty,
				},
			}
			got, err := db.GetAggregates(context.Background(), tt.args.assetId, "BTC/USDT", tt.args.interval, tt.args.start, tt.args.end)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetAggregates() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetAggregates() unexpected error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("GetAggregates() len = %d, want %d", len(got), len(tt.want))
			}
			for i := 0; i < len(tt.want); i++ {
				if got[i].Symbol != "BTC/USDT" {
					t.Errorf("GetAggregates() %s symbol got = %v", got[i].Timestamp, got[i].Symbol)
					break
				}
				if got[i].Interval != tt.args.interval {
					t.Errorf("GetAggregates() %s interval got = %v, want %v", got[i].Timestamp, got[i].Interval, tt.want[i].Interval)
					break
				}
				if !got[i].High.Equal(tt.want[i].High) {
					t.Errorf("GetAggregates() %s high got = %v, want %v", got[i].Timestamp, got[i].High, tt.want[i].High)
					break
				}
				if !got[i].Timestamp.Equal(tt.want[i].Timestamp) {
					t.Errorf("GetAggregates() timestamp got = %v, want %v", got[i].Timestamp, tt.want[i].Timestamp)
					break
				}
			}
		})
	}
}

func TestDatabase_LoadCandles(t *testing.T) {
	repo := &recordingCandles{}
	db := &Database{assets: mockAssetsRepository{}, candles: repo}

	got, err := db.LoadCandles(context.Background(), "BTC/USDT", types.Hour, startTime, startTime.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("LoadCandles() unexpected error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("LoadCandles() len = %d, want 3", len(got))
	}
	if repo.lastArgs == nil || repo.lastArgs.TimeBucket != "1 hour" || repo.lastArgs.AssetID != 1 {
		t.Errorf("LoadCandles() query args = %+v", repo.lastArgs)
	}

	db.assets = mockAssetsRepository{sqlError: pgx.ErrNoRows}
	if _, err := db.LoadCandles(context.Background(), "DOGE/USDT", types.Hour, startTime, endTime); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("LoadCandles() error = %v, want ErrAssetNotFound", err)
	}
}

func (r *recordingCandles) GetAggregates(ctx context.Context, arg aggregateParams) ([]aggregateRow, error) {
	r.lastArgs = &arg
	return r.mockCandlesRepository.GetAggregates(ctx, arg)
}

func (m mockCandlesRepository) GetAggregates(_ context.Context, arg aggregateParams) ([]aggregateRow, error) {
	if m.sqlError != nil {
		return []aggregateRow{}, m.sqlError
	}
	if m.empty {
		return nil, nil
	}
	step := time.Minute
	if arg.TimeBucket == "1 hour" {
		step = time.Hour
	}
	var candles []aggregateRow
	i := arg.Starttime
	for i.Before(arg.Endtime) {
		candles = append(candles, aggregateRow{
			Bucket:  i,
			AssetID: arg.AssetID,
			Open:    decimal.NewFromInt(i.UnixMilli()),
			High:    decimal.NewFromInt(i.UnixMilli()),
			Low:     decimal.NewFromInt(i.UnixMilli()),
			Close:   decimal.NewFromInt(i.UnixMilli()),
			Volume:  decimal.NewFromInt(i.UnixMilli()),
		})
		i = i.Add(step)
	}
	return candles, nil
}

func mockCandles(start, end time.Time) []types.Candle {
	var candles []types.Candle
	i := start
	for i.Before(end) {
		candles = append(candles, types.Candle{
			Timestamp: i,
			Interval:  testInterval,
			Open:      decimal.NewFromInt(i.UnixMilli()),
			High:      decimal.NewFromInt(i.UnixMilli()),
			Low:       decimal.NewFromInt(i.UnixMilli()),
			Close:     decimal.NewFromInt(i.UnixMilli()),
			Volume:    decimal.NewFromInt(i.UnixMilli()),
		})
		i = i.Add(types.IntervalToTime[testInterval])
	}
	return candles
}
