package sqlxrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/resource"
	"github.com/trezcool/conservatoire/storage/database"
)

type resourceRepository struct {
	db core.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db core.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, r resource.Resource) (resource.Resource, error) {
	q := `INSERT INTO resources (id, title, url, created_by, created_at)
		VALUES (:id, :title, :url, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, r); err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return r, nil
}

func (repo *resourceRepository) GetResource(ctx context.Context, id string) (resource.Resource, error) {
	var r resource.Resource
	q := `SELECT id, title, url, created_by, created_at FROM resources WHERE id = $1`
	if err := repo.db.GetContext(ctx, &r, q, id); err != nil {
		return resource.Resource{}, trapNoRowsErr(err, resource.ErrNotFound, "selecting resource")
	}
	return r, nil
}

func (repo *resourceRepository) CreateAssignment(ctx context.Context, a resource.Assignment) (resource.Assignment, error) {
	q := `INSERT INTO resource_assignments (resource_id, target_kind, target_id, assigned_at) VALUES ($1, $2, $3, $4)`
	if _, err := repo.db.ExecContext(ctx, q, a.ResourceID, a.Target.Kind, a.Target.ID, a.AssignedAt); err != nil {
		if database.IsUniqueViolation(err, "resource_assignments_target_key") {
			return resource.Assignment{}, resource.ErrAlreadyAssigned
		}
		return resource.Assignment{}, trapFKErr(err, "inserting resource assignment",
			fkRef{"resource_assignments_resource_id_fkey", a.ResourceID, resource.ErrNotFound})
	}
	return a, nil
}

func (repo *resourceRepository) QueryAssigned(ctx context.Context, targets []resource.AssignableRef) ([]resource.Resource, error) {
	resources := make([]resource.Resource, 0)
	if len(targets) == 0 {
		return resources, nil
	}

	pairs := make([]string, 0, len(targets))
	args := make([]interface{}, 0, 2*len(targets))
	for _, t := range targets {
		n := len(args)
		pairs = append(pairs, "($"+strconv.Itoa(n+1)+", $"+strconv.Itoa(n+2)+"::uuid)")
		args = append(args, t.Kind, t.ID)
	}
	q := `SELECT DISTINCT r.id, r.title, r.url, r.created_by, r.created_at
		FROM resources r
		JOIN resource_assignments a ON a.resource_id = r.id
		WHERE (a.target_kind, a.target_id) IN (` + strings.Join(pairs, ", ") + `)
		ORDER BY r.created_at`
	if err := repo.db.SelectContext(ctx, &resources, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting assigned resources")
	}
	return resources, nil
}
