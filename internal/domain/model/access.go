package model

// AccessReason explains an access decision.
type AccessReason string

const (
	AccessAdminOrCreator  AccessReason = "admin_or_creator"
	AccessFreeTest        AccessReason = "free_test"
	AccessPurchasedSeries AccessReason = "purchased_series"
	AccessPurchasedTest   AccessReason = "purchased_test"
	AccessNotPurchased    AccessReason = "not_purchased"
	AccessNotPublished    AccessReason = "not_published"
)

func (r AccessReason) Granted() bool {
	switch r {
	case AccessAdminOrCreator, AccessFreeTest, AccessPurchasedSeries, AccessPurchasedTest:
		return true
	}
	return false
}

type AccessDecision struct {
	HasAccess bool         `json:"has_access"`
	Reason    AccessReason `json:"reason"`
}

func NewAccessDecision(r AccessReason) AccessDecision {
	return AccessDecision{HasAccess: r.Granted(), Reason: r}
}
