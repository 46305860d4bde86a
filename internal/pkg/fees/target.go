package fees

import (
	"fmt"

	"github.com/ManuelReschke/AgroCoop/app/models"
)

// Target describes which members a fee rule applies to. The set of
// implementations is closed: AllMembers, RoleTarget, UnitTarget, ZoneTarget.
type Target interface {
	fmt.Stringer
	isTarget()
}

type AllMembers struct{}

type RoleTarget struct{ Role string }

type UnitTarget struct{ UnitID uint }

type ZoneTarget struct{ ZoneID uint }

func (AllMembers) isTarget() {}
func (RoleTarget) isTarget() {}
func (UnitTarget) isTarget() {}
func (ZoneTarget) isTarget() {}

func (AllMembers) String() string   { return "all" }
func (t RoleTarget) String() string { return "role:" + t.Role }
func (t UnitTarget) String() string { return fmt.Sprintf("unit:%d", t.UnitID) }
func (t ZoneTarget) String() string { return fmt.Sprintf("zone:%d", t.ZoneID) }

// TargetOf reads the applicability fields of a rule.
func TargetOf(rule *models.FeeRule) (Target, error) {
	switch rule.ApplicableTo {
	case models.FeeApplicableAll:
		return AllMembers{}, nil
	case models.FeeApplicableRole:
		if !models.IsTargetableRole(rule.TargetRole) {
			return nil, validationError("unknown target role %q", rule.TargetRole)
		}
		return RoleTarget{Role: rule.TargetRole}, nil
	case models.FeeApplicableUnit:
		if rule.TargetUnitID == nil {
			return nil, validationError("fee rule %d has no target unit", rule.ID)
		}
		return UnitTarget{UnitID: *rule.TargetUnitID}, nil
	case models.FeeApplicableZone:
		if rule.TargetZoneID == nil {
			return nil, validationError("fee rule %d has no target zone", rule.ID)
		}
		return ZoneTarget{ZoneID: *rule.TargetZoneID}, nil
	default:
		return nil, validationError("unknown applicable_to %q", rule.ApplicableTo)
	}
}
