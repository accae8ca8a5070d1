package mailfetcher

import (
	"fmt"

	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
)

type ServerConfig struct {
	Host string
	Port int
	TLS  bool
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

var providers = map[enum.MailProvider]ServerConfig{
	enum.MailProviderGmail:   {Host: "imap.gmail.com", Port: 993, TLS: true},
	enum.MailProviderOutlook: {Host: "outlook.office365.com", Port: 993, TLS: true},
	enum.MailProviderYahoo:   {Host: "imap.mail.yahoo.com", Port: 993, TLS: true},
}

func ServerFor(provider enum.MailProvider) (ServerConfig, error) {
	server, ok := providers[enum.GetMailProvider(provider.String())]
	if !ok {
		return ServerConfig{}, fmt.Errorf("%w: %q", coreerr.ErrUnsupportedProvider, provider)
	}
	return server, nil
}
