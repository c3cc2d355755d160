package dispute

import "time"

// Reason is the fixed set of causes a counterparty can be reported for.
type Reason string

const (
	ReasonItemNotReceived    Reason = "item_not_received"
	ReasonItemDamaged        Reason = "item_damaged"
	ReasonItemNotAsDescribed Reason = "item_not_as_described"
	ReasonFraud              Reason = "fraud"
	ReasonSpam               Reason = "spam"
	ReasonAbusiveConduct     Reason = "abusive_conduct"
)

func validReason(r Reason) bool {
	switch r {
	case ReasonItemNotReceived, ReasonItemDamaged, ReasonItemNotAsDescribed,
		ReasonFraud, ReasonSpam, ReasonAbusiveConduct:
		return true
	default:
		return false
	}
}

// Action is the administrative outcome recorded when a dispute is resolved.
type Action string

const (
	ActionWarning             Action = "warning"
	ActionTemporarySuspension Action = "temporary_suspension"
	ActionFeatureRestriction  Action = "feature_restriction"
	ActionFine                Action = "fine"
	ActionPermanentExpulsion  Action = "permanent_expulsion"
	ActionListingRemoval      Action = "listing_removal"
	ActionRejected            Action = "rejected"
	ActionNoAction            Action = "no_action"
)

func validAction(a Action) bool {
	switch a {
	case ActionWarning, ActionTemporarySuspension, ActionFeatureRestriction,
		ActionFine, ActionPermanentExpulsion, ActionListingRemoval,
		ActionRejected, ActionNoAction:
		return true
	default:
		return false
	}
}

// SanctionType is the penalty applied to a reported user. Rejected and
// no_action are dispute outcomes, not sanctions, so they are excluded.
type SanctionType string

const (
	SanctionWarning             SanctionType = "warning"
	SanctionTemporarySuspension SanctionType = "temporary_suspension"
	SanctionFeatureRestriction  SanctionType = "feature_restriction"
	SanctionFine                SanctionType = "fine"
	SanctionPermanentExpulsion  SanctionType = "permanent_expulsion"
	SanctionListingRemoval      SanctionType = "listing_removal"
)

func validSanctionType(t SanctionType) bool {
	switch t {
	case SanctionWarning, SanctionTemporarySuspension, SanctionFeatureRestriction,
		SanctionFine, SanctionPermanentExpulsion, SanctionListingRemoval:
		return true
	default:
		return false
	}
}

// Record mirrors the disputes table. At most one unresolved dispute exists
// per order.
type Record struct {
	ID          string
	OrderID     string
	ReporterID  string
	ReportedID  string
	Reason      Reason
	Description string
	Resolved    bool
	ActionTaken Action
	FiledAt     time.Time
	ResolvedAt  *time.Time
	Sanctions   []Sanction
}

// Sanction is one penalty issued while resolving a dispute. Active is
// independent of the dispute's Resolved flag: a resolved dispute can leave a
// temporary sanction in force until EndAt passes.
type Sanction struct {
	ID              string
	DisputeID       string
	Type            SanctionType
	ReasonText      string
	StartAt         time.Time
	EndAt           *time.Time
	DurationDays    *int
	IssuedByAdminID string
	Active          bool
}

// InForce reports whether the sanction still applies at the given instant.
func (s Sanction) InForce(at time.Time) bool {
	if !s.Active {
		return false
	}
	if at.Before(s.StartAt) {
		return false
	}
	return s.EndAt == nil || !at.After(*s.EndAt)
}
