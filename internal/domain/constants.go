package domain

const (
	RoleClient = "CLIENT"
	RoleWorker = "WORKER"
	RoleAdmin  = "ADMIN"
)

const (
	PaymentMethodCash    = "cash"
	PaymentMethodGateway = "gateway"
)

const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
	PaymentRefunded  = "refunded"
)

const (
	ComplaintOpen        = "open"
	ComplaintUnderReview = "under_review"
	ComplaintResolved    = "resolved"
	ComplaintClosed      = "closed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification types pushed to participants after a committed change.
const (
	NotifyNewBooking       = "NEW_BOOKING"
	NotifyBookingAccepted  = "BOOKING_ACCEPTED"
	NotifyBookingCancelled = "BOOKING_CANCELLED"
	NotifyWorkStarted      = "WORK_STARTED"
	NotifyItemsProposed    = "ITEMS_PROPOSED"
	NotifyBookingCompleted = "BOOKING_COMPLETED"
	NotifyPaymentConfirmed = "PAYMENT_CONFIRMED"
	NotifyPaymentRefunded  = "PAYMENT_REFUNDED"
	NotifyNewReview        = "NEW_REVIEW"
	NotifyComplaintFiled   = "COMPLAINT_FILED"
	NotifyComplaintUpdated = "COMPLAINT_UPDATED"
)

// complaintNext lists the statuses a complaint may move to.
var complaintNext = map[string][]string{
	ComplaintOpen:        {ComplaintUnderReview, ComplaintResolved, ComplaintClosed},
	ComplaintUnderReview: {ComplaintResolved, ComplaintClosed},
	ComplaintResolved:    {ComplaintClosed},
}

// ComplaintPredecessors returns the statuses from which a complaint may enter to.
func ComplaintPredecessors(to string) []string {
	var from []string
	for _, s := range []string{ComplaintOpen, ComplaintUnderReview, ComplaintResolved} {
		for _, n := range complaintNext[s] {
			if n == to {
				from = append(from, s)
			}
		}
	}
	return from
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
