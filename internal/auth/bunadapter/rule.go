package bunadapter

import (
	"strings"

	"github.com/uptrace/bun"
)

var columns = [...]string{"v0", "v1", "v2", "v3", "v4", "v5"}

// CasbinRule is one stored policy or grouping line. All columns form the
// primary key so identical lines collapse.
type CasbinRule struct {
	bun.BaseModel `bun:"table:casbin_rules,alias:cr"`

	Ptype string `bun:"ptype,pk,type:varchar(16),notnull"`
	V0    string `bun:"v0,pk,type:varchar(255),notnull,default:''"` // subject
	V1    string `bun:"v1,pk,type:varchar(255),notnull,default:''"` // object, or role for groupings
	V2    string `bun:"v2,pk,type:varchar(255),notnull,default:''"` // action
	V3    string `bun:"v3,pk,type:varchar(255),notnull,default:''"`
	V4    string `bun:"v4,pk,type:varchar(255),notnull,default:''"`
	V5    string `bun:"v5,pk,type:varchar(255),notnull,default:''"`
}

func newRule(ptype string, rule []string) *CasbinRule {
	line := &CasbinRule{Ptype: ptype}
	dst := []*string{&line.V0, &line.V1, &line.V2, &line.V3, &line.V4, &line.V5}
	for i := 0; i < len(rule) && i < len(dst); i++ {
		*dst[i] = rule[i]
	}
	return line
}

// fields returns all six value columns.
func (r *CasbinRule) fields() []string {
	return []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
}

// values trims trailing empty columns, keeping empty ones in the middle.
func (r *CasbinRule) values() []string {
	all := r.fields()
	last := len(all) - 1
	for last >= 0 && all[last] == "" {
		last--
	}
	return all[:last+1]
}

func (r *CasbinRule) String() string {
	return strings.Join(append([]string{r.Ptype}, r.values()...), ", ")
}
