package receiving

import (
	"fmt"

	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed   bool
	Condition string
	Reason    string
}

// Err converts a denial into an AuthorizationError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &AuthorizationError{Condition: d.Condition, Reason: d.Reason}
}

var receivableStatuses = map[requests.Status]struct{}{
	requests.StatusApproved:  {},
	requests.StatusPartial:   {},
	requests.StatusCompleted: {},
}

// CanRecordReceipt decides whether role may record a receipt on a request in
// status. Role is checked before status.
func CanRecordReceipt(status requests.Status, role shared.Role) Decision {
	if role != shared.RoleAdmin {
		return Decision{Condition: ConditionRole, Reason: "only administrators can record receipts"}
	}
	if _, ok := receivableStatuses[status]; !ok {
		return Decision{Condition: ConditionStatus, Reason: fmt.Sprintf("receipts cannot be recorded while the request is %s", status)}
	}
	return Decision{Allowed: true}
}

// CanReceiveItem decides whether goods may be received against an item in
// the given review status.
func CanReceiveItem(status requests.ItemStatus) Decision {
	if status != requests.ItemApproved {
		return Decision{Condition: ConditionItem, Reason: fmt.Sprintf("item is %s; only approved items can receive goods", status)}
	}
	return Decision{Allowed: true}
}

// CanViewRequest allows admins and the request's own requester.
func CanViewRequest(actor shared.Actor, requesterID int64) Decision {
	if actor.IsAdmin() || actor.ID == requesterID {
		return Decision{Allowed: true}
	}
	return Decision{Condition: ConditionRole, Reason: "only administrators or the requester can view these receipts"}
}
