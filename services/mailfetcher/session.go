package mailfetcher

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"
)

// session is the part of the IMAP client a fetch needs.
type session interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	SetTimeout(d time.Duration)
	Logout() error
	Terminate() error
}

type dialFunc func(ctx context.Context, server ServerConfig, timeout time.Duration) (session, error)

type imapSession struct {
	*client.Client
}

func (s imapSession) SetTimeout(d time.Duration) {
	s.Timeout = d
}

func dialIMAP(ctx context.Context, server ServerConfig, timeout time.Duration) (session, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var c *client.Client
	var err error
	if server.TLS {
		c, err = client.DialWithDialerTLS(dialer, server.Addr(), &tls.Config{ServerName: server.Host})
	} else {
		c, err = client.DialWithDialer(dialer, server.Addr())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", server.Addr())
	}
	return imapSession{Client: c}, nil
}
