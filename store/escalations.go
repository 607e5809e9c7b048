package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/100PercentTuna/the-undertow-sub000/escalation"
	"gorm.io/gorm"
)

// Save inserts a new escalation package.
func (s *Store) Save(ctx context.Context, pkg *escalation.Package) error {
	rec, err := escalationRecord(pkg)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save escalation %s: %w", pkg.ID, err)
	}
	return nil
}

// Load returns the package with the given id, or escalation.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*escalation.Package, error) {
	var rec EscalationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", escalation.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load escalation %s: %w", id, err)
	}
	return rec.toPackage()
}

// List returns packages with the given status in triage order: priority
// rank first, oldest first within a rank. An empty status lists all.
func (s *Store) List(ctx context.Context, status escalation.Status) ([]*escalation.Package, error) {
	q := s.db.WithContext(ctx).Model(&EscalationRecord{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var recs []EscalationRecord
	if err := q.Order("priority_rank ASC, created_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	pkgs := make([]*escalation.Package, 0, len(recs))
	for i := range recs {
		pkg, err := recs[i].toPackage()
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

// Update overwrites an existing package, or returns escalation.ErrNotFound
// when no row carries its id.
func (s *Store) Update(ctx context.Context, pkg *escalation.Package) error {
	rec, err := escalationRecord(pkg)
	if err != nil {
		return err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&EscalationRecord{}).Where("id = ?", pkg.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("update escalation %s: %w", pkg.ID, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", escalation.ErrNotFound, pkg.ID)
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("update escalation %s: %w", pkg.ID, err)
	}
	return nil
}
