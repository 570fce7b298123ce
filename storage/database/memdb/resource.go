package memdb

import (
	"context"
	"sort"

	"github.com/trezcool/conservatoire/core/resource"
)

type resourceRepository struct {
	db *DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(_ context.Context, r resource.Resource) (resource.Resource, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.resources[r.ID] = &r
	return r, nil
}

func (repo *resourceRepository) GetResource(_ context.Context, id string) (resource.Resource, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.resources[id]; ok {
		return *r, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) CreateAssignment(_ context.Context, a resource.Assignment) (resource.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.resources[a.ResourceID]; !ok {
		return resource.Assignment{}, resource.ErrNotFound
	}
	for _, existing := range repo.db.assignments {
		if existing.ResourceID == a.ResourceID && existing.Target == a.Target {
			return resource.Assignment{}, resource.ErrAlreadyAssigned
		}
	}
	repo.db.assignments = append(repo.db.assignments, a)
	return a, nil
}

func (repo *resourceRepository) QueryAssigned(_ context.Context, targets []resource.AssignableRef) ([]resource.Resource, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[resource.AssignableRef]bool, len(targets))
	for _, t := range targets {
		wanted[t] = true
	}
	seen := make(map[string]bool)
	resources := make([]resource.Resource, 0)
	for _, a := range repo.db.assignments {
		if !wanted[a.Target] || seen[a.ResourceID] {
			continue
		}
		if r, ok := repo.db.resources[a.ResourceID]; ok {
			seen[a.ResourceID] = true
			resources = append(resources, *r)
		}
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].CreatedAt.Before(resources[j].CreatedAt) })
	return resources, nil
}
