package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

// PackageSelector picks the instance to debit among the eligible set. The
// slice is already ordered by the debit policy; a nil result aborts the
// transaction with no eligible credits.
type PackageSelector func([]models.StudentPackage) *models.StudentPackage

// DebitParams carries everything needed to record one attendance.
type DebitParams struct {
	StudentID   string
	ClassID     string
	Date        time.Time
	EntryMethod models.EntryMethod
	CreditCost  int
	Select      PackageSelector
}

// RefundParams carries the reversal inputs.
type RefundParams struct {
	AttendanceID string
	ReversedAt   time.Time
}

// LedgerRepository owns the transactional debit/refund path across
// student_packages, attendances and ledger_entries.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// RecordAttendance debits the selected package and creates the attendance
// record plus its ledger entry in a single transaction. The student's
// candidate package rows are locked for the duration, so two concurrent
// check-ins against the last credit cannot both succeed.
func (r *LedgerRepository) RecordAttendance(ctx context.Context, p DebitParams) (*models.AttendanceRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	record := &models.AttendanceRecord{
		ID:          uuid.NewString(),
		StudentID:   p.StudentID,
		ClassID:     p.ClassID,
		Date:        p.Date.UTC(),
		CreditsUsed: p.CreditCost,
		EntryMethod: p.EntryMethod,
		CreatedAt:   time.Now().UTC(),
	}

	if p.CreditCost > 0 {
		candidates, err := r.lockCandidates(ctx, tx, p.StudentID, p.Date)
		if err != nil {
			return nil, err
		}

		eligible := candidates[:0]
		for _, c := range candidates {
			if c.EligibleFor(p.CreditCost, p.Date) {
				eligible = append(eligible, c)
			}
		}

		var chosen *models.StudentPackage
		if p.Select != nil {
			chosen = p.Select(eligible)
		}
		if chosen == nil {
			return nil, appErrors.ErrNoEligibleCredits
		}

		delta := p.CreditCost
		if chosen.IsUnlimited {
			delta = 0
		} else {
			res, err := tx.ExecContext(ctx,
				`UPDATE student_packages SET credits_remaining = credits_remaining - $2, updated_at = $3
                 WHERE id = $1 AND credits_remaining >= $2`,
				chosen.ID, p.CreditCost, time.Now().UTC())
			if err != nil {
				return nil, fmt.Errorf("debit package %s: %w", chosen.ID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, fmt.Errorf("debit package %s: %w", chosen.ID, err)
			}
			if affected == 0 {
				return nil, appErrors.ErrConcurrentModification
			}
		}

		record.SourcePackageID = &chosen.ID
		if err := insertLedgerEntry(ctx, tx, &models.LedgerEntry{
			ID:               uuid.NewString(),
			StudentPackageID: chosen.ID,
			AttendanceID:     record.ID,
			Type:             models.LedgerEntryDebit,
			Credits:          delta,
			CreatedAt:        record.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO attendances (id, student_id, class_id, date, credits_used, entry_method, source_package_id, reversed, created_at)
         VALUES (:id, :student_id, :class_id, :date, :credits_used, :entry_method, :source_package_id, false, :created_at)`,
		record); err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit debit tx: %w", err)
	}
	return record, nil
}

// ReverseAttendance flags the record reversed and refunds the debited
// credits onto the original instance in one transaction. The refund lands
// even on expired or revoked instances so the ledger balances out.
func (r *LedgerRepository) ReverseAttendance(ctx context.Context, p RefundParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refund tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE attendances SET reversed = true, reversed_at = $2 WHERE id = $1 AND reversed = false`,
		p.AttendanceID, p.ReversedAt.UTC())
	if err != nil {
		return fmt.Errorf("flag attendance reversed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("flag attendance reversed: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrAlreadyReversed
	}

	var debit models.LedgerEntry
	err = tx.GetContext(ctx, &debit,
		`SELECT id, student_package_id, attendance_id, type, credits, created_at
         FROM ledger_entries WHERE attendance_id = $1 AND type = $2
         ORDER BY created_at DESC LIMIT 1 FOR UPDATE`,
		p.AttendanceID, models.LedgerEntryDebit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Zero-cost attendance, nothing was debited.
			return tx.Commit()
		}
		return fmt.Errorf("load debit entry: %w", err)
	}

	if debit.Credits > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE student_packages SET credits_remaining = credits_remaining + $2, updated_at = $3 WHERE id = $1`,
			debit.StudentPackageID, debit.Credits, time.Now().UTC()); err != nil {
			return fmt.Errorf("refund package %s: %w", debit.StudentPackageID, err)
		}
	}

	if err := insertLedgerEntry(ctx, tx, &models.LedgerEntry{
		ID:               uuid.NewString(),
		StudentPackageID: debit.StudentPackageID,
		AttendanceID:     p.AttendanceID,
		Type:             models.LedgerEntryRefund,
		Credits:          debit.Credits,
		CreatedAt:        time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refund tx: %w", err)
	}
	return nil
}

// EntriesByPackage returns the full accounting trail for an instance.
func (r *LedgerRepository) EntriesByPackage(ctx context.Context, studentPackageID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, student_package_id, attendance_id, type, credits, created_at
         FROM ledger_entries WHERE student_package_id = $1 ORDER BY created_at ASC`,
		studentPackageID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// lockCandidates fetches the student's package rows that could cover the
// debit date, locked, ordered by the debit policy: finite before unlimited,
// soonest expiry first, oldest purchase first, id as the final tie-break.
func (r *LedgerRepository) lockCandidates(ctx context.Context, tx *sqlx.Tx, studentID string, date time.Time) ([]models.StudentPackage, error) {
	var candidates []models.StudentPackage
	err := tx.SelectContext(ctx, &candidates,
		`SELECT sp.id, sp.student_id, sp.package_id, pd.name AS package_name, sp.credits, sp.credits_remaining,
                sp.is_unlimited, sp.valid_from, sp.valid_until, sp.is_active, sp.created_at, sp.updated_at
         FROM student_packages sp
         JOIN package_definitions pd ON pd.id = sp.package_id
         WHERE sp.student_id = $1 AND sp.is_active = true AND sp.valid_from <= $2 AND sp.valid_until >= $2
         ORDER BY sp.is_unlimited ASC, sp.valid_until ASC, sp.valid_from ASC, sp.id ASC
         FOR UPDATE OF sp`,
		studentID, date.UTC())
	if err != nil {
		return nil, fmt.Errorf("lock candidate packages: %w", err)
	}
	return candidates, nil
}

func insertLedgerEntry(ctx context.Context, tx *sqlx.Tx, entry *models.LedgerEntry) error {
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO ledger_entries (id, student_package_id, attendance_id, type, credits, created_at)
         VALUES (:id, :student_package_id, :attendance_id, :type, :credits, :created_at)`,
		entry); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
