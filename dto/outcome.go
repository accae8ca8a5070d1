package dto

import "github.com/customeros/violationstack/internal/enum"

type OutcomeKind string

const (
	OutcomeCreated           OutcomeKind = "created"
	OutcomeDuplicate         OutcomeKind = "duplicate"
	OutcomeNoViolations      OutcomeKind = "no_violations"
	OutcomeNoDriverReference OutcomeKind = "no_driver_reference"
	OutcomeDriverNotFound    OutcomeKind = "driver_not_found"
	OutcomeDriverAmbiguous   OutcomeKind = "driver_ambiguous"
	OutcomeSenderNotAllowed  OutcomeKind = "sender_not_allowed"
	OutcomeError             OutcomeKind = "error"
)

// Outcome is the result of running one message through the pipeline.
type Outcome struct {
	Kind             OutcomeKind
	InboundMessageId string
	DriverId         string
	Created          []enum.ViolationCategory
	Existing         []enum.ViolationCategory
	Notified         int
	Err              error
}

func (o Outcome) CreatedCount() int {
	return len(o.Created)
}

func (o Outcome) IsDedupe() bool {
	return o.Kind == OutcomeDuplicate
}
