package fees

import (
	"context"
	"slices"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Resolver expands a fee rule into the set of member IDs it applies to.
type Resolver struct {
	members repository.MemberRepository
}

func NewResolver(members repository.MemberRepository) *Resolver {
	return &Resolver{members: members}
}

// ResolveTargets returns the sorted, de-duplicated IDs of active members
// matching the rule. A unit or zone that no longer exists resolves to an
// empty set.
func (r *Resolver) ResolveTargets(ctx context.Context, rule *models.FeeRule) ([]uint, error) {
	target, err := TargetOf(rule)
	if err != nil {
		return nil, err
	}

	var ids []uint
	switch t := target.(type) {
	case AllMembers:
		ids, err = r.members.ListActiveIDs(ctx)
	case RoleTarget:
		ids, err = r.members.ListActiveIDsByRole(ctx, t.Role)
	case UnitTarget:
		ids, err = r.members.ListActiveIDsByUnit(ctx, t.UnitID)
	case ZoneTarget:
		ids, err = r.members.ListActiveIDsByZone(ctx, t.ZoneID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolve members for %s", target)
	}

	ids = lo.Uniq(ids)
	slices.Sort(ids)
	return ids, nil
}
