// Package registry holds the named build tasks of a pipeline.
//
// A Registry is created at startup, filled with Register and sealed before
// the graph, executor and watcher use it. After Seal it is read-only and may
// be shared between goroutines. The registry keeps its own copy of every
// task and hands out copies, so callers cannot change a declaration once it
// is registered.
package registry

import (
	"fmt"
	"sync"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

// Registry manages all declared tasks
type Registry struct {
	tasks  map[string]*Task
	order  []string
	sealed bool
	mutex  sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Register adds a task. Names are unique.
func (r *Registry) Register(task *Task) error {
	if task == nil || task.Name == "" {
		return pipelineerrors.NewStructuralError("INVALID_TASK", "task must have a name", nil)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.sealed {
		return fmt.Errorf("registering %q: %w", task.Name, pipelineerrors.ErrSealed)
	}
	if _, exists := r.tasks[task.Name]; exists {
		return pipelineerrors.NewDuplicateNameError(task.Name)
	}

	r.tasks[task.Name] = task.clone()
	r.order = append(r.order, task.Name)
	return nil
}

// MustRegister registers every task and panics on the first error. Meant
// for static declarations.
func (r *Registry) MustRegister(tasks ...*Task) {
	for _, t := range tasks {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve returns a copy of the named task.
func (r *Registry) Resolve(name string) (*Task, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	task, exists := r.tasks[name]
	if !exists {
		return nil, pipelineerrors.NewUnknownTaskError(name)
	}
	return task.clone(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.tasks[name]
	return exists
}

// All returns copies of every task in registration order
func (r *Registry) All() []*Task {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tasks[name].clone())
	}
	return result
}

// ByKind returns the tasks of one kind in registration order.
func (r *Registry) ByKind(kind Kind) []*Task {
	var result []*Task
	for _, t := range r.All() {
		if t.Kind == kind {
			result = append(result, t)
		}
	}
	return result
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.sealed = true
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.sealed
}

// Count returns the number of registered tasks
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.tasks)
}
