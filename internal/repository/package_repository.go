package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ritmo-academy/academy-api/internal/models"
)

// PackageRepository manages the package catalog and student instances.
type PackageRepository struct {
	db *sqlx.DB
}

// NewPackageRepository constructs a PackageRepository.
func NewPackageRepository(db *sqlx.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// ListDefinitions returns catalog packages matching the filter.
func (r *PackageRepository) ListDefinitions(ctx context.Context, filter models.PackageFilter) ([]models.PackageDefinition, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT id, name, description, credits, is_unlimited, price, duration_days, is_active, created_at, updated_at
        FROM package_definitions WHERE %s ORDER BY price ASC`, strings.Join(conditions, " AND "))

	var defs []models.PackageDefinition
	if err := r.db.SelectContext(ctx, &defs, query, args...); err != nil {
		return nil, fmt.Errorf("list package definitions: %w", err)
	}
	return defs, nil
}

// FindDefinitionByID fetches one catalog package.
func (r *PackageRepository) FindDefinitionByID(ctx context.Context, id string) (*models.PackageDefinition, error) {
	var def models.PackageDefinition
	err := r.db.GetContext(ctx, &def,
		`SELECT id, name, description, credits, is_unlimited, price, duration_days, is_active, created_at, updated_at
         FROM package_definitions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// CreateDefinition inserts a catalog package.
func (r *PackageRepository) CreateDefinition(ctx context.Context, def *models.PackageDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now
	const query = `INSERT INTO package_definitions (id, name, description, credits, is_unlimited, price, duration_days, is_active, created_at, updated_at)
        VALUES (:id, :name, :description, :credits, :is_unlimited, :price, :duration_days, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, def); err != nil {
		return fmt.Errorf("create package definition: %w", err)
	}
	return nil
}

// UpdateDefinition modifies a catalog package. Snapshots on existing
// instances are untouched; catalog edits never retroact.
func (r *PackageRepository) UpdateDefinition(ctx context.Context, def *models.PackageDefinition) error {
	def.UpdatedAt = time.Now().UTC()
	const query = `UPDATE package_definitions SET name = :name, description = :description, credits = :credits,
        is_unlimited = :is_unlimited, price = :price, duration_days = :duration_days, is_active = :is_active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, def); err != nil {
		return fmt.Errorf("update package definition: %w", err)
	}
	return nil
}

// ListByStudent returns all package instances a student has purchased,
// newest first.
func (r *PackageRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentPackage, error) {
	var instances []models.StudentPackage
	err := r.db.SelectContext(ctx, &instances,
		`SELECT sp.id, sp.student_id, sp.package_id, pd.name AS package_name, sp.credits, sp.credits_remaining,
                sp.is_unlimited, sp.valid_from, sp.valid_until, sp.is_active, sp.created_at, sp.updated_at
         FROM student_packages sp
         JOIN package_definitions pd ON pd.id = sp.package_id
         WHERE sp.student_id = $1 ORDER BY sp.created_at DESC`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("list student packages: %w", err)
	}
	return instances, nil
}

// FindInstanceByID fetches one student package instance.
func (r *PackageRepository) FindInstanceByID(ctx context.Context, id string) (*models.StudentPackage, error) {
	var instance models.StudentPackage
	err := r.db.GetContext(ctx, &instance,
		`SELECT sp.id, sp.student_id, sp.package_id, pd.name AS package_name, sp.credits, sp.credits_remaining,
                sp.is_unlimited, sp.valid_from, sp.valid_until, sp.is_active, sp.created_at, sp.updated_at
         FROM student_packages sp
         JOIN package_definitions pd ON pd.id = sp.package_id
         WHERE sp.id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// Purchase creates the instance and its payment in one transaction.
func (r *PackageRepository) Purchase(ctx context.Context, instance *models.StudentPackage, payment *models.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purchase tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO student_packages (id, student_id, package_id, credits, credits_remaining, is_unlimited, valid_from, valid_until, is_active, created_at, updated_at)
         VALUES (:id, :student_id, :package_id, :credits, :credits_remaining, :is_unlimited, :valid_from, :valid_until, :is_active, :created_at, :updated_at)`,
		instance); err != nil {
		return fmt.Errorf("insert student package: %w", err)
	}

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO payments (id, student_id, student_package_id, amount, method, receipt_number, status, created_at)
         VALUES (:id, :student_id, :student_package_id, :amount, :method, :receipt_number, :status, :created_at)`,
		payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit purchase tx: %w", err)
	}
	return nil
}

// Revoke administratively deactivates an instance. The row survives for
// the audit trail.
func (r *PackageRepository) Revoke(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE student_packages SET is_active = false, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke student package: %w", err)
	}
	return nil
}

// Extend pushes the validity window of an instance forward.
func (r *PackageRepository) Extend(ctx context.Context, id string, days int) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE student_packages SET valid_until = valid_until + ($2 * INTERVAL '1 day'), updated_at = $3 WHERE id = $1`,
		id, days, time.Now().UTC()); err != nil {
		return fmt.Errorf("extend student package: %w", err)
	}
	return nil
}
