package worker

import (
	"context"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// MockClickHouseConn implements driver.Conn for testing
type MockClickHouseConn struct {
	driver.Conn

	mu         sync.Mutex
	Batches    []*MockBatch
	Queries    []string
	PrepareErr error
	SendErr    error
}

func (m *MockClickHouseConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.PrepareErr != nil {
		return nil, m.PrepareErr
	}
	b := &MockBatch{conn: m}
	m.Batches = append(m.Batches, b)
	return b, nil
}

// SentRows returns every row of every successfully sent batch
func (m *MockClickHouseConn) SentRows() [][]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]interface{}
	for _, b := range m.Batches {
		if b.sent {
			out = append(out, b.rows...)
		}
	}
	return out
}

// MockBatch records appended rows
type MockBatch struct {
	driver.Batch
	conn *MockClickHouseConn
	rows [][]interface{}
	sent bool
}

func (m *MockBatch) Append(v ...interface{}) error {
	m.rows = append(m.rows, v)
	return nil
}

func (m *MockBatch) Rows() int {
	return len(m.rows)
}

func (m *MockBatch) IsSent() bool {
	return m.sent
}

func (m *MockBatch) Send() error {
	m.conn.mu.Lock()
	defer m.conn.mu.Unlock()
	if m.conn.SendErr != nil {
		return m.conn.SendErr
	}
	m.sent = true
	return nil
}

func (m *MockBatch) Abort() error {
	return nil
}
