package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
)

// MockRateDatasetProvider for testing
type MockRateDatasetProvider struct {
	mock.Mock
}

func (m *MockRateDatasetProvider) FetchRateRows(ctx context.Context, code, region string) ([]entities.RawRateRow, error) {
	args := m.Called(ctx, code, region)
	var rows []entities.RawRateRow
	if v := args.Get(0); v != nil {
		rows = v.([]entities.RawRateRow)
	}
	return rows, args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func officeVisitRows() []entities.RawRateRow {
	return []entities.RawRateRow{
		row(100, 150, 90),
		row(120, 160, 95),
		row(110, 170, 100),
	}
}
