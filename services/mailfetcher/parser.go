package mailfetcher

import (
	"bytes"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/utils"
)

// ParseMessage turns a full RFC 822 message into a RawMessage. fallbackID is used when the
// message carries no Message-Id header.
func ParseMessage(raw []byte, fallbackID string, receivedAt time.Time) (dto.RawMessage, error) {
	msg := dto.RawMessage{
		MessageID:  fallbackID,
		ReceivedAt: receivedAt,
		Raw:        raw,
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return msg, errors.Wrap(err, "failed to parse message")
	}

	if id := utils.NormalizeMessageID(env.GetHeader("Message-Id")); id != "" {
		msg.MessageID = id
	}
	msg.Subject = strings.TrimSpace(env.GetHeader("Subject"))
	msg.From = senderAddress(env.GetHeader("From"))
	msg.Text = env.Text
	msg.HTML = env.HTML
	return msg, nil
}

func senderAddress(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return strings.ToLower(header)
	}
	return strings.ToLower(addr.Address)
}
