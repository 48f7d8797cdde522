package arkiv

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient is a stateful in-memory Client for tests. By default it behaves
// like a real store: creates assign sequential entity keys, updates and reads
// hit the same map. Set the error fields to inject collaborator failures.
type MockClient struct {
	mu       sync.Mutex
	entities map[string]Entity
	nextKey  int

	// CreateEntityErr, when set, is returned by CreateEntity before any state
	// change. Same pattern for the other operations.
	CreateEntityErr error
	UpdateEntityErr error
	GetEntityErr    error
	QueryErr        error

	// Call tracking for verification
	CreateEntityCalls int
	UpdateEntityCalls int
}

// NewMockClient creates an empty in-memory chain-state store.
func NewMockClient() *MockClient {
	return &MockClient{
		entities: make(map[string]Entity),
	}
}

// Ensure MockClient implements Client at compile time.
var _ Client = (*MockClient)(nil)

// CreateEntity implements Client.
func (m *MockClient) CreateEntity(ctx context.Context, payload []byte, attrs Attributes) (*CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateEntityCalls++
	if m.CreateEntityErr != nil {
		return nil, m.CreateEntityErr
	}

	m.nextKey++
	key := fmt.Sprintf("0x%064x", m.nextKey)
	m.entities[key] = Entity{
		EntityKey:   key,
		Payload:     payload,
		ContentType: "application/json",
		Attributes:  cloneAttrs(attrs),
	}
	return &CreateResult{
		EntityKey: key,
		TxHash:    fmt.Sprintf("0xtx%062x", m.nextKey),
	}, nil
}

// UpdateEntity implements Client.
func (m *MockClient) UpdateEntity(ctx context.Context, entityKey string, payload []byte, attrs Attributes) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateEntityCalls++
	if m.UpdateEntityErr != nil {
		return "", m.UpdateEntityErr
	}

	if _, ok := m.entities[entityKey]; !ok {
		return "", fmt.Errorf("entity %s not found", entityKey)
	}
	m.entities[entityKey] = Entity{
		EntityKey:   entityKey,
		Payload:     payload,
		ContentType: "application/json",
		Attributes:  cloneAttrs(attrs),
	}
	return fmt.Sprintf("0xtxu%061x", m.UpdateEntityCalls), nil
}

// GetEntity implements Client.
func (m *MockClient) GetEntity(ctx context.Context, entityKey string) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetEntityErr != nil {
		return nil, m.GetEntityErr
	}
	ent, ok := m.entities[entityKey]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", entityKey)
	}
	return &ent, nil
}

// QueryEntities implements Client. Only the attribute predicates used by the
// orchestrator are understood: equality on type and status.
func (m *MockClient) QueryEntities(ctx context.Context, query string) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var results []Entity
	for _, ent := range m.entities {
		if matchesQuery(ent.Attributes, query) {
			results = append(results, ent)
		}
	}
	return results, nil
}

// matchesQuery evaluates `SELECT * WHERE a = 'x' AND b = 'y'` predicates
// against entity attributes.
func matchesQuery(attrs Attributes, query string) bool {
	where := query
	if idx := strings.Index(strings.ToUpper(query), "WHERE"); idx >= 0 {
		where = query[idx+len("WHERE"):]
	}
	for _, clause := range strings.Split(where, " AND ") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), "'")
		if attrs[key] != val {
			return false
		}
	}
	return true
}

func cloneAttrs(attrs Attributes) Attributes {
	cloned := make(Attributes, len(attrs))
	for k, v := range attrs {
		cloned[k] = v
	}
	return cloned
}
