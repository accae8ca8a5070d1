package enum

import "strings"

type MailProvider string

const (
	MailProviderGmail   MailProvider = "gmail"
	MailProviderOutlook MailProvider = "outlook"
	MailProviderYahoo   MailProvider = "yahoo"
)

func (p MailProvider) String() string {
	return string(p)
}

func GetMailProvider(s string) MailProvider {
	return MailProvider(strings.ToLower(strings.TrimSpace(s)))
}
