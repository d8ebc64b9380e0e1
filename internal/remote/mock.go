package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/kantongapp/kantong/internal/model"
)

// Call records one remote operation for test assertions.
type Call struct {
	Table string
	Op    string
	ID    string
}

// Mock is an in-memory service.RemoteStore for tests.
//
// Set Err to make every call fail. Set Gate to a channel to make calls block
// until it is closed, which lets tests hold a drain pass open.
type Mock struct {
	Err          error
	Gate         chan struct{}
	transactions map[string]model.Transaction
	categories   map[string]model.Category
	calls        []Call
	mu           sync.Mutex
}

// NewMock creates an empty mock remote store.
func NewMock() *Mock {
	return &Mock{
		transactions: make(map[string]model.Transaction),
		categories:   make(map[string]model.Category),
	}
}

func (m *Mock) enter(table, op, id string) error {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Table: table, Op: op, ID: id})
	gate := m.Gate
	err := m.Err
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// SetErr changes the scripted failure for subsequent calls.
func (m *Mock) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// InsertTransaction implements service.RemoteStore.
func (m *Mock) InsertTransaction(_ context.Context, txn model.Transaction) error {
	if err := m.enter(transactionsTable, "insert", txn.ID); err != nil {
		return err
	}
	txn.Status = model.StatusSuccess
	m.mu.Lock()
	m.transactions[txn.ID] = txn
	m.mu.Unlock()
	return nil
}

// UpdateTransaction implements service.RemoteStore.
func (m *Mock) UpdateTransaction(_ context.Context, txn model.Transaction) error {
	if err := m.enter(transactionsTable, "update", txn.ID); err != nil {
		return err
	}
	m.mu.Lock()
	m.transactions[txn.ID] = txn
	m.mu.Unlock()
	return nil
}

// DeleteTransaction implements service.RemoteStore.
func (m *Mock) DeleteTransaction(_ context.Context, id string) error {
	if err := m.enter(transactionsTable, "delete", id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.transactions, id)
	m.mu.Unlock()
	return nil
}

// ListTransactions implements service.RemoteStore.
func (m *Mock) ListTransactions(_ context.Context, userID string, limit, offset int) ([]model.Transaction, error) {
	if err := m.enter(transactionsTable, "list", userID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	var txns []model.Transaction
	for _, txn := range m.transactions {
		if txn.UserID == userID {
			txns = append(txns, txn)
		}
	}
	m.mu.Unlock()

	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.After(txns[j].Date)
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})

	if offset >= len(txns) {
		return []model.Transaction{}, nil
	}
	end := offset + limit
	if end > len(txns) {
		end = len(txns)
	}
	return txns[offset:end], nil
}

// InsertCategory implements service.RemoteStore.
func (m *Mock) InsertCategory(_ context.Context, cat model.Category) error {
	if err := m.enter(categoriesTable, "insert", cat.ID); err != nil {
		return err
	}
	m.mu.Lock()
	m.categories[cat.ID] = cat
	m.mu.Unlock()
	return nil
}

// UpdateCategory implements service.RemoteStore.
func (m *Mock) UpdateCategory(_ context.Context, cat model.Category) error {
	if err := m.enter(categoriesTable, "update", cat.ID); err != nil {
		return err
	}
	m.mu.Lock()
	m.categories[cat.ID] = cat
	m.mu.Unlock()
	return nil
}

// DeleteCategory implements service.RemoteStore.
func (m *Mock) DeleteCategory(_ context.Context, id string) error {
	if err := m.enter(categoriesTable, "delete", id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.categories, id)
	m.mu.Unlock()
	return nil
}

// ListCategories implements service.RemoteStore.
func (m *Mock) ListCategories(_ context.Context, userID string) ([]model.Category, error) {
	if err := m.enter(categoriesTable, "list", userID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	var cats []model.Category
	for _, cat := range m.categories {
		if cat.UserID == userID {
			cats = append(cats, cat)
		}
	}
	m.mu.Unlock()

	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

// Transaction returns the stored remote transaction, if present.
func (m *Mock) Transaction(id string) (model.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	return txn, ok
}

// Category returns the stored remote category, if present.
func (m *Mock) Category(id string) (model.Category, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[id]
	return cat, ok
}
