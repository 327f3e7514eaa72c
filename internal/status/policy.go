package status

// Transition tables per role. Key is current status, value is the set of
// statuses the role may move a detail to. Anything not listed is rejected
// before a network call is made; the backend applies the same tables
// authoritatively.
var designerTransitions = map[Code][]Code{
	NeedDesign: {Designing},
	Designing:  {CheckDesign},
	DesignRedo: {Designing, CheckDesign},
}

// reviewTransitions apply to sellers and managers approving or rejecting an
// uploaded design. Approval is additionally gated by CanApproveOrReject.
var reviewTransitions = map[Code][]Code{
	CheckDesign: {ReadyProd, DesignRedo},
}

// sellerHoldTransitions let a seller flag a shipped item for refund or
// reprint review.
var sellerHoldTransitions = map[Code][]Code{
	Shipped: {HoldRefund, HoldReprint},
}

// managerResolveTransitions let a manager resolve a held item.
var managerResolveTransitions = map[Code][]Code{
	HoldRefund:  {Refund},
	HoldReprint: {ReadyProd},
}

// CanTransition reports whether the actor role may move a detail from
// current to target. The tables only ever move forward through the
// lifecycle or into a recoverable branch; there is no backward transition
// for any role.
func CanTransition(current, target Code, role Role) bool {
	switch role {
	case RoleDesigner:
		return contains(designerTransitions[current], target)
	case RoleSeller:
		return contains(reviewTransitions[current], target) ||
			contains(sellerHoldTransitions[current], target)
	case RoleManager:
		return contains(reviewTransitions[current], target) ||
			contains(managerResolveTransitions[current], target)
	}
	return false
}

// CanApproveOrReject is the cross-entity precondition on line-item design
// review: the order as a whole must already be flagged for check
// (order-level DesignRedo) while the item itself sits in CheckDesign.
// The asymmetry is carried over from observed behavior; treat it as a
// business rule to confirm with product owners before relaxing it.
func CanApproveOrReject(orderStatus, itemStatus Code) bool {
	return orderStatus == DesignRedo && itemStatus == CheckDesign
}

func contains(codes []Code, c Code) bool {
	for _, v := range codes {
		if v == c {
			return true
		}
	}
	return false
}
