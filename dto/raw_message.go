package dto

import "time"

// RawMessage is one email as handed to the pipeline, from IMAP or push ingress.
type RawMessage struct {
	MessageID  string
	Subject    string
	From       string
	Text       string
	HTML       string
	ReceivedAt time.Time
	Raw        []byte
	UID        uint32
}
