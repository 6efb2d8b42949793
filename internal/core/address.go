package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrMalformedAddress is returned when an address cannot be parsed into a
// local part and domain. Routing treats it as "no match".
var ErrMalformedAddress = errors.New("malformed email address")

// Address is a canonical email address: raw local part plus lower-cased domain.
type Address struct {
	LocalPart string
	Domain    string
}

// String returns the canonical localPart@domain form.
func (a Address) String() string {
	return a.LocalPart + "@" + a.Domain
}

// NormalizeAddress parses a raw or display-name-wrapped address
// ("Name <user@example.com>") into its canonical form.
func NormalizeAddress(raw string) (Address, error) {
	addr := strings.TrimSpace(raw)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}

	at := strings.LastIndex(addr, "@")
	if at < 1 || at == len(addr)-1 {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedAddress, raw)
	}

	return Address{
		LocalPart: addr[:at],
		Domain:    strings.ToLower(addr[at+1:]),
	}, nil
}

// TaggedAddress is a plus-addressed local part of the form tag+token.
type TaggedAddress struct {
	Tag   string
	Token string
}

// ParseTagged recognizes a tag+token local part. It returns nil when there is
// no "+" separator or when either side of it is empty, so "digest+@example.com"
// is not treated as tagged.
func ParseTagged(localPart string) *TaggedAddress {
	plus := strings.Index(localPart, "+")
	if plus < 0 {
		return nil
	}

	tag := localPart[:plus]
	token := localPart[plus+1:]
	if tag == "" || token == "" {
		return nil
	}

	return &TaggedAddress{Tag: tag, Token: token}
}
