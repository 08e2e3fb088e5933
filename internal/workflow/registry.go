package workflow

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/door-access-manager/backend/internal/metrics"
	"github.com/door-access-manager/backend/internal/session"
)

// Registry owns the open workflows keyed by id. A workflow belongs to the
// operator who opened it and is invisible to everyone else.
type Registry struct {
	deps    Dependencies
	idleTTL time.Duration
	cron    *cron.Cron

	mu        sync.Mutex
	workflows map[string]*Workflow
}

// NewRegistry creates a new workflow registry. Workflows untouched for longer
// than idleTTL are closed by the sweeper; zero disables sweeping.
func NewRegistry(deps Dependencies, idleTTL time.Duration) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Registry{
		deps:      deps,
		idleTTL:   idleTTL,
		cron:      cron.New(),
		workflows: make(map[string]*Workflow),
	}
}

// Open creates a new empty workflow owned by sess.
func (r *Registry) Open(sess *session.Session) (*Workflow, error) {
	if err := session.Validate(sess); err != nil {
		return nil, err
	}

	w := New(uuid.NewString(), r.deps)
	w.owner = sess.Owner()

	r.mu.Lock()
	r.workflows[w.ID()] = w
	n := len(r.workflows)
	r.mu.Unlock()

	metrics.OpenWorkflows.Set(float64(n))
	return w, nil
}

// Get returns the workflow with the given id. Workflows owned by another
// operator are reported as ErrNotFound.
func (r *Registry) Get(sess *session.Session, id string) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workflows[id]
	if !ok || !w.ownedBy(sess) {
		return nil, ErrNotFound
	}
	return w, nil
}

// Close abandons and removes a workflow owned by sess.
func (r *Registry) Close(sess *session.Session, id string) error {
	r.mu.Lock()
	w, ok := r.workflows[id]
	if !ok || !w.ownedBy(sess) {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.workflows, id)
	n := len(r.workflows)
	r.mu.Unlock()

	w.Close()
	metrics.OpenWorkflows.Set(float64(n))
	return nil
}

// Len returns the number of open workflows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workflows)
}

// Sweep closes workflows idle since before now minus the idle TTL and returns
// how many were closed.
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Workflow
	for id, w := range r.workflows {
		if w.TouchedAt().Before(cutoff) {
			idle = append(idle, w)
			delete(r.workflows, id)
		}
	}
	n := len(r.workflows)
	r.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	metrics.OpenWorkflows.Set(float64(n))
	return len(idle)
}

// Start schedules the idle sweeper.
func (r *Registry) Start() error {
	if r.idleTTL <= 0 {
		return nil
	}

	log.Printf("Starting workflow sweeper (idle TTL %s)...", r.idleTTL)
	_, err := r.cron.AddFunc("@every 1m", func() {
		if n := r.Sweep(r.deps.Now()); n > 0 {
			log.Printf("Closed %d idle workflow(s)", n)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling workflow sweep: %w", err)
	}

	r.cron.Start()
	return nil
}

// Stop halts the sweeper and closes every workflow.
func (r *Registry) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()

	r.mu.Lock()
	open := r.workflows
	r.workflows = make(map[string]*Workflow)
	r.mu.Unlock()

	for _, w := range open {
		w.Close()
	}
	metrics.OpenWorkflows.Set(0)
	log.Println("Workflow registry stopped")
}
