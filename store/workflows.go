// ABOUTME: WorkflowRepository is the contract httpapi uses for workflow
// ABOUTME: definition CRUD. The durable backing store is out of scope (see
// ABOUTME: spec.md §1 Non-goals); InMemoryWorkflowRepository satisfies the
// ABOUTME: contract for standalone/dev use of this daemon.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/flowxcore/engine/engine"
)

// WorkflowDefinition is a saved graph plus its metadata.
type WorkflowDefinition struct {
	ID        string
	Name      string
	Nodes     []engine.Node
	Edges     []engine.Edge
	UpdatedAt time.Time
}

// WorkflowRepository is the CRUD contract httpapi depends on.
type WorkflowRepository interface {
	List(ctx context.Context) ([]WorkflowDefinition, error)
	Get(ctx context.Context, id string) (WorkflowDefinition, error)
	Save(ctx context.Context, wf WorkflowDefinition) (WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryWorkflowRepository is a process-lifetime-only implementation:
// sufficient for this daemon's own tests and for standalone deployments
// where the out-of-scope durable workflow store isn't wired in.
type InMemoryWorkflowRepository struct {
	mu    sync.RWMutex
	items map[string]WorkflowDefinition
}

func NewInMemoryWorkflowRepository() *InMemoryWorkflowRepository {
	return &InMemoryWorkflowRepository{items: make(map[string]WorkflowDefinition)}
}

func (r *InMemoryWorkflowRepository) List(ctx context.Context) ([]WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]WorkflowDefinition, 0, len(r.items))
	for _, wf := range r.items {
		out = append(out, wf)
	}
	return out, nil
}

func (r *InMemoryWorkflowRepository) Get(ctx context.Context, id string) (WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.items[id]
	if !ok {
		return WorkflowDefinition{}, fmt.Errorf("workflow %s not found", id)
	}
	return wf, nil
}

func (r *InMemoryWorkflowRepository) Save(ctx context.Context, wf WorkflowDefinition) (WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wf.ID == "" {
		wf.ID = ulid.Make().String()
	}
	wf.UpdatedAt = time.Now()
	r.items[wf.ID] = wf
	return wf, nil
}

func (r *InMemoryWorkflowRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}
