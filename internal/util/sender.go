package util

import (
	"regexp"
	"strings"
)

var angleAddr = regexp.MustCompile(`<([^>]+)>`)

// UnknownDomain is reported for sender identities without an '@'.
const UnknownDomain = "unknown"

// Sender is the identity extracted from a raw From header.
type Sender struct {
	Address   string
	LocalPart string
	Domain    string
}

// ParseSender extracts the sender identity from a From header value.
// - `Name <user@example.com>` yields user@example.com
// - anything without an angle-bracketed address is used verbatim
// Domain is what follows the last '@', or UnknownDomain.
// Unlike a full RFC 5322 parse, no case folding or alias stripping is done:
// two headers only aggregate together when their addresses match exactly.
func ParseSender(from string) Sender {
	addr := from
	if m := angleAddr.FindStringSubmatch(from); m != nil {
		addr = m[1]
	}
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return Sender{Address: addr, LocalPart: addr, Domain: UnknownDomain}
	}
	return Sender{Address: addr, LocalPart: addr[:at], Domain: addr[at+1:]}
}
