package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/auth/bunadapter"
)

func init() {
	Migrations.MustRegister(up_20260901000001, down_20260901000001)
}

func seedRules() []bunadapter.CasbinRule {
	rules := make([]bunadapter.CasbinRule, 0, len(auth.SeedPolicies))
	for _, p := range auth.SeedPolicies {
		rules = append(rules, bunadapter.CasbinRule{Ptype: "p", V0: p[0], V1: p[1], V2: p[2]})
	}
	return rules
}

// up_20260901000001 seeds the default admin and manager grants
func up_20260901000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding default Casbin policies...")
	rules := seedRules()
	_, err := db.NewInsert().
		Model(&rules).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed Casbin policies: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

// down_20260901000001 removes the seeded grants
func down_20260901000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing seeded Casbin policies...")
	for _, r := range seedRules() {
		_, err := db.NewDelete().
			Model((*bunadapter.CasbinRule)(nil)).
			Where("ptype = ? AND v0 = ? AND v1 = ? AND v2 = ?", r.Ptype, r.V0, r.V1, r.V2).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove seeded policy: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}
