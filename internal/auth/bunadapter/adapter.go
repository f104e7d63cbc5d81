// Package bunadapter stores Casbin policy lines in the casbin_rules table
// through the application's shared *bun.DB.
package bunadapter

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"
)

// Adapter implements persist.Adapter and persist.BatchAdapter over bun.
type Adapter struct {
	db *bun.DB
}

var (
	_ persist.Adapter      = (*Adapter)(nil)
	_ persist.BatchAdapter = (*Adapter)(nil)
)

// NewAdapter wraps db. The casbin_rules table is created by migrations.
func NewAdapter(db *bun.DB) *Adapter {
	return &Adapter{db: db}
}

// LoadPolicy loads every stored line into m.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*CasbinRule
	if err := a.db.NewSelect().Model(&rules).Order("ptype", "v0", "v1", "v2").Scan(context.Background()); err != nil {
		return fmt.Errorf("load casbin rules: %w", err)
	}

	for _, r := range rules {
		values := r.values()
		if r.Ptype == "" || len(values) == 0 {
			continue
		}
		if err := m.AddPolicy(r.Ptype[:1], r.Ptype, values); err != nil {
			return fmt.Errorf("load rule %s: %w", r, err)
		}
	}
	return nil
}

// SavePolicy replaces the stored policy with the contents of m.
func (a *Adapter) SavePolicy(m model.Model) error {
	var lines []*CasbinRule
	for _, sec := range []string{"p", "g"} {
		for ptype, assertion := range m[sec] {
			for _, rule := range assertion.Policy {
				lines = append(lines, newRule(ptype, rule))
			}
		}
	}

	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*CasbinRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear casbin rules: %w", err)
		}
		return insertRules(ctx, tx, lines)
	})
}

// AddPolicy stores one rule. Existing rules are left alone.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	return insertRules(context.Background(), a.db, []*CasbinRule{newRule(ptype, rule)})
}

// AddPolicies stores several rules.
func (a *Adapter) AddPolicies(_ string, ptype string, rules [][]string) error {
	lines := make([]*CasbinRule, 0, len(rules))
	for _, rule := range rules {
		lines = append(lines, newRule(ptype, rule))
	}
	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		return insertRules(ctx, tx, lines)
	})
}

// RemovePolicy deletes one rule.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	return a.deleteRules(newRule(ptype, rule))
}

// RemovePolicies deletes several rules.
func (a *Adapter) RemovePolicies(_ string, ptype string, rules [][]string) error {
	lines := make([]*CasbinRule, 0, len(rules))
	for _, rule := range rules {
		lines = append(lines, newRule(ptype, rule))
	}
	return a.deleteRules(lines...)
}

// RemoveFilteredPolicy deletes rules whose fields starting at fieldIndex
// match fieldValues. Empty values match anything.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	q := a.db.NewDelete().Model((*CasbinRule)(nil)).Where("ptype = ?", ptype)
	for i, v := range fieldValues {
		col := fieldIndex + i
		if v == "" || col < 0 || col >= len(columns) {
			continue
		}
		q = q.Where("? = ?", bun.Ident(columns[col]), v)
	}
	if _, err := q.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove filtered casbin rules: %w", err)
	}
	return nil
}

func insertRules(ctx context.Context, db bun.IDB, lines []*CasbinRule) error {
	for _, line := range lines {
		if _, err := db.NewInsert().Model(line).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("insert casbin rule %s: %w", line, err)
		}
	}
	return nil
}

func (a *Adapter) deleteRules(lines ...*CasbinRule) error {
	if len(lines) == 0 {
		return nil
	}
	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		for _, line := range lines {
			q := tx.NewDelete().Model((*CasbinRule)(nil)).Where("ptype = ?", line.Ptype)
			for i, v := range line.fields() {
				q = q.Where("? = ?", bun.Ident(columns[i]), v)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("remove casbin rule %s: %w", line, err)
			}
		}
		return nil
	})
}
