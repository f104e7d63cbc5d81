package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth/bunadapter"
)

//go:embed model.conf
var casbinModelContent string

// InitEnforcer builds a synced Casbin enforcer over the casbin_rules table
// and loads the seeded role policy. Subjects are `role:<name>`; which roles a
// user holds comes from user_roles, not from Casbin grouping rules.
func InitEnforcer(db *bun.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, bunadapter.NewAdapter(db))
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	enforcer.EnableAutoSave(true)

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}
	return enforcer, nil
}
