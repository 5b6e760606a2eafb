package models

type TrxStatus string

const (
	StatusPending               TrxStatus = "pending"
	StatusAwaitingFIProcess     TrxStatus = "awaiting_fi_process"
	StatusAwaitingPGProcess     TrxStatus = "awaiting_pg_process"
	StatusAwaitingUserAction    TrxStatus = "awaiting_user_action"
	StatusAwaitingAdminApproval TrxStatus = "awaiting_admin_approval"
	StatusCompleted             TrxStatus = "completed"
	StatusCanceled              TrxStatus = "canceled"
	StatusFailed                TrxStatus = "failed"
	StatusRefunded              TrxStatus = "refunded"
	StatusExpired               TrxStatus = "expired"
)

// AwaitingStatuses are the non-terminal states a transaction sits in while
// an external party has to act.
var AwaitingStatuses = []TrxStatus{
	StatusAwaitingFIProcess,
	StatusAwaitingPGProcess,
	StatusAwaitingUserAction,
	StatusAwaitingAdminApproval,
}

var openTargets = []TrxStatus{
	StatusAwaitingFIProcess,
	StatusAwaitingPGProcess,
	StatusAwaitingUserAction,
	StatusAwaitingAdminApproval,
	StatusCompleted,
	StatusFailed,
	StatusCanceled,
	StatusExpired,
}

var transitions = map[TrxStatus][]TrxStatus{
	StatusPending:               openTargets,
	StatusAwaitingFIProcess:     openTargets,
	StatusAwaitingPGProcess:     openTargets,
	StatusAwaitingUserAction:    openTargets,
	StatusAwaitingAdminApproval: openTargets,
	StatusCompleted:             {StatusRefunded},
	StatusFailed:                {StatusRefunded},
	StatusCanceled:              {StatusRefunded},
	StatusRefunded:              {},
	StatusExpired:               {},
}

func (s TrxStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s TrxStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusFailed, StatusRefunded, StatusExpired:
		return true
	}
	return false
}

func (s TrxStatus) IsAwaiting() bool {
	for _, a := range AwaitingStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// CanTransition reports whether a transaction in from may move to to.
// Awaiting states may be re-entered so intermediate partner updates can
// refresh remarks.
func CanTransition(from, to TrxStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor lists every status from which to is reachable in one step.
func SourcesFor(to TrxStatus) []TrxStatus {
	var sources []TrxStatus
	for _, from := range []TrxStatus{
		StatusPending,
		StatusAwaitingFIProcess,
		StatusAwaitingPGProcess,
		StatusAwaitingUserAction,
		StatusAwaitingAdminApproval,
		StatusCompleted,
		StatusFailed,
		StatusCanceled,
		StatusRefunded,
		StatusExpired,
	} {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}
