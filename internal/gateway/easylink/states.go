package easylink

// State is Easylink's numeric disbursement state.
type State int

const (
	StateCreate State = iota + 1
	StateConfirm
	StateHold
	StateReview
	StatePayout
	StateSent
	StateComplete
	StateCanceled
	StateFailed
	StateRefundSuccess
	StateProcessingByPartner
	StateRemindRecipient
)

var stateNames = map[State]string{
	StateCreate:              "create",
	StateConfirm:             "confirm",
	StateHold:                "hold",
	StateReview:              "review",
	StatePayout:              "payout",
	StateSent:                "sent",
	StateComplete:            "complete",
	StateCanceled:            "canceled",
	StateFailed:              "failed",
	StateRefundSuccess:       "refund_success",
	StateProcessingByPartner: "processing_by_partner",
	StateRemindRecipient:     "remind_recipient",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) Known() bool {
	_, ok := stateNames[s]
	return ok
}

// IsSuccess covers remind_recipient, which remittance corridors send
// instead of complete.
func (s State) IsSuccess() bool {
	return s == StateComplete || s == StateRemindRecipient
}

// IsFailure covers refund_success, the acknowledgement of a refund the
// partner already initiated.
func (s State) IsFailure() bool {
	return s == StateCanceled || s == StateFailed || s == StateRefundSuccess
}

func (s State) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}
