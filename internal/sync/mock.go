package sync

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tributary-data/tributary/pkg/errors"
	"github.com/tributary-data/tributary/pkg/logger"
	"github.com/tributary-data/tributary/pkg/models"
)

// MockExtractor serves generated rows instead of querying the external
// database. Selected via TRIBUTARY_DEV_MODE so the full pipeline can be
// exercised without an external connection.
type MockExtractor struct {
	numRecords int
	rng        *rand.Rand
	logger     *zap.Logger
}

// NewMockExtractor creates a mock extractor generating numRecords rows
// per table (stores are capped at 20).
func NewMockExtractor(numRecords int) *MockExtractor {
	if numRecords <= 0 {
		numRecords = 100
	}
	return &MockExtractor{
		numRecords: numRecords,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger.Get().With(zap.String("component", "mock-extractor")),
	}
}

// Fetch streams generated rows for the table. The since parameter is
// ignored; mock data is always a full snapshot.
func (m *MockExtractor) Fetch(ctx context.Context, mapping models.TableMapping, since time.Time) (<-chan models.Record, <-chan error) {
	recordCh := make(chan models.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordCh)
		defer close(errCh)

		records, err := m.generate(mapping.Name)
		if err != nil {
			errCh <- err
			return
		}

		m.logger.Info("serving mock data", zap.String("table", mapping.Name), zap.Int("records", len(records)))

		for _, record := range records {
			select {
			case recordCh <- record:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return recordCh, errCh
}

func (m *MockExtractor) generate(table string) ([]models.Record, error) {
	switch table {
	case "stores":
		return m.stores(20), nil
	case "products":
		return m.products(m.numRecords), nil
	case "customers":
		return m.customers(m.numRecords), nil
	case "sales":
		return m.sales(m.numRecords), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeData, "no mock data available for table %q", table)
	}
}

func (m *MockExtractor) stores(n int) []models.Record {
	cities := []string{"Berlin", "Hamburg", "Munich", "Cologne", "Frankfurt", "Stuttgart", "Leipzig", "Dortmund"}

	records := make([]models.Record, n)
	for i := 0; i < n; i++ {
		records[i] = models.Record{
			"store_id":    i + 1,
			"name":        fmt.Sprintf("Store %d", i+1),
			"address":     fmt.Sprintf("%d Hauptstrasse", m.rng.Intn(999)+1),
			"city":        cities[m.rng.Intn(len(cities))],
			"postal_code": fmt.Sprintf("%05d", m.rng.Intn(90000)+10000),
			"phone":       fmt.Sprintf("+49-%03d-%07d", m.rng.Intn(900)+100, m.rng.Intn(9000000)+1000000),
		}
	}
	return records
}

func (m *MockExtractor) products(n int) []models.Record {
	now := time.Now()

	records := make([]models.Record, n)
	for i := 0; i < n; i++ {
		records[i] = models.Record{
			"product_id":  i + 1,
			"name":        fmt.Sprintf("Product %d", i+1),
			"category_id": m.rng.Intn(10) + 1,
			"price":       float64(m.rng.Intn(9900)+100) / 100,
			"description": fmt.Sprintf("Description for product %d", i+1),
			"created_at":  now.AddDate(0, 0, -(m.rng.Intn(335) + 30)),
			"updated_at":  now,
		}
	}
	return records
}

func (m *MockExtractor) customers(n int) []models.Record {
	firstNames := []string{"John", "Jane", "Michael", "Emma", "William", "Olivia", "James", "Sophia"}
	lastNames := []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Miller", "Davis", "Wilson"}
	now := time.Now()

	records := make([]models.Record, n)
	for i := 0; i < n; i++ {
		records[i] = models.Record{
			"customer_id":        i + 1,
			"first_name":         firstNames[m.rng.Intn(len(firstNames))],
			"last_name":          lastNames[m.rng.Intn(len(lastNames))],
			"email":              fmt.Sprintf("customer%d@example.com", i+1),
			"phone":              fmt.Sprintf("555-%03d-%04d", m.rng.Intn(900)+100, m.rng.Intn(9000)+1000),
			"address":            fmt.Sprintf("%d Main St, City %d", m.rng.Intn(999)+1, i+1),
			"registration_date":  now.AddDate(0, 0, -(m.rng.Intn(730) + 1)),
			"last_purchase_date": now.AddDate(0, 0, -(m.rng.Intn(365) + 1)),
		}
	}
	return records
}

func (m *MockExtractor) sales(n int) []models.Record {
	now := time.Now()

	records := make([]models.Record, n)
	for i := 0; i < n; i++ {
		quantity := m.rng.Intn(10) + 1
		unitPrice := float64(m.rng.Intn(9900)+100) / 100
		records[i] = models.Record{
			"bill_id":       fmt.Sprintf("INV-%06d", i+1),
			"product_id":    m.rng.Intn(50) + 1,
			"customer_id":   m.rng.Intn(100) + 1,
			"store_id":      m.rng.Intn(20) + 1,
			"quantity":      quantity,
			"unit_price":    unitPrice,
			"total_price":   unitPrice * float64(quantity),
			"purchase_date": now.AddDate(0, 0, -(m.rng.Intn(365) + 1)),
		}
	}
	return records
}
