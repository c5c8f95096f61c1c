// Package repository provides the storage-agnostic contracts for Job and
// Run persistence, plus a process-local implementation grounded in the
// mutex-guarded in-memory store pattern used throughout the reference
// service's storage package. The durable relational engine a production
// deployment would use sits behind the same interface (see SQLDatabaseConfig
// in sql_config.go) and is intentionally left unwired per the platform's
// scope (the persistence engine itself is an external collaborator).
package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/epistemix-platform/simcontrol/internal/kernel"
)

// JobRepository is the storage-agnostic contract for Job persistence.
type JobRepository interface {
	Save(job *kernel.Job) (*kernel.Job, error)
	FindByID(id int64) (*kernel.Job, error)
	FindByUserID(userID int64) ([]*kernel.Job, error)
	FindByStatus(status kernel.JobStatus) ([]*kernel.Job, error)
	FindAll(limit, offset int) ([]*kernel.Job, error)
	Exists(id int64) (bool, error)
	Delete(id int64) error
}

// InMemoryJobRepository is a mutex-guarded, process-local JobRepository.
type InMemoryJobRepository struct {
	mu     sync.RWMutex
	jobs   map[int64]*kernel.Job
	nextID int64
}

func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{jobs: map[int64]*kernel.Job{}}
}

func (r *InMemoryJobRepository) Save(job *kernel.Job) (*kernel.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	cp := cloneJob(job)
	if cp.ID == 0 {
		r.nextID++
		cp.ID = r.nextID
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.jobs[cp.ID] = cp
	return cloneJob(cp), nil
}

func (r *InMemoryJobRepository) FindByID(id int64) (*kernel.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, &kernel.NotFoundError{Kind: "job", ID: id}
	}
	return cloneJob(j), nil
}

func (r *InMemoryJobRepository) FindByUserID(userID int64) ([]*kernel.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*kernel.Job
	for _, j := range r.jobs {
		if j.UserID == userID {
			out = append(out, cloneJob(j))
		}
	}
	sortJobsByCreatedDesc(out)
	return out, nil
}

func (r *InMemoryJobRepository) FindByStatus(status kernel.JobStatus) ([]*kernel.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*kernel.Job
	for _, j := range r.jobs {
		if j.Status == status {
			out = append(out, cloneJob(j))
		}
	}
	sortJobsByCreatedDesc(out)
	return out, nil
}

func (r *InMemoryJobRepository) FindAll(limit, offset int) ([]*kernel.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*kernel.Job
	for _, j := range r.jobs {
		all = append(all, cloneJob(j))
	}
	sortJobsByCreatedDesc(all)
	if offset >= len(all) {
		return []*kernel.Job{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *InMemoryJobRepository) Exists(id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.jobs[id]
	return ok, nil
}

func (r *InMemoryJobRepository) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return &kernel.NotFoundError{Kind: "job", ID: id}
	}
	delete(r.jobs, id)
	return nil
}

func sortJobsByCreatedDesc(jobs []*kernel.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
}

func cloneJob(j *kernel.Job) *kernel.Job {
	cp := *j
	cp.Tags = append([]string(nil), j.Tags...)
	if j.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
