package enum

type InboundStatus string

const (
	InboundStatusPending InboundStatus = "pending"
	InboundStatusParsed  InboundStatus = "parsed"
	InboundStatusFailed  InboundStatus = "failed"
)

func (s InboundStatus) String() string {
	return string(s)
}

func (s InboundStatus) IsTerminal() bool {
	return s == InboundStatusParsed || s == InboundStatusFailed
}

// CanTransitionTo allows only pending -> parsed and pending -> failed.
func (s InboundStatus) CanTransitionTo(next InboundStatus) bool {
	return s == InboundStatusPending && next.IsTerminal()
}

type InboundChannel string

const (
	InboundChannelIMAP InboundChannel = "imap"
	InboundChannelPush InboundChannel = "push"
)

func (c InboundChannel) String() string {
	return string(c)
}
