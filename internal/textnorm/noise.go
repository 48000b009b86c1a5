package textnorm

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/purchase-sync/constants"
)

const RedactedAddress = "[email removed]"

var (
	reForwardMarker = regexp.MustCompile(`(?i)^[-_=\s]*(forwarded message|original message|begin forwarded message:?|videresendt melding|opprinnelig melding|vidarebefordrat meddelande|ursprungligt meddelande|videresendt besked|oprindelig meddelelse|videresendt e-?post)[-_=:\s]*$`)
	reHeaderLine    = regexp.MustCompile(`(?i)^\s*(from|to|cc|sent|date|subject|reply-to|fra|til|kopi|sendt|dato|emne|svar til|från|till|kopia|skickat|datum|ämne)\s*:`)
	reEmailAddress  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@([A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)+)`)
)

// StripNoise removes forwarding artifacts from normalized text: forward markers
// and the header block that follows them, stray header lines carrying an
// address, and addresses at consumer mailbox providers.
func StripNoise(text string) string {
	if text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inHeaderBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if reForwardMarker.MatchString(trimmed) {
			inHeaderBlock = true
			continue
		}
		if reHeaderLine.MatchString(trimmed) {
			if inHeaderBlock || strings.Contains(trimmed, "@") {
				continue
			}
		} else if inHeaderBlock && trimmed != "" {
			inHeaderBlock = false
		}
		out = append(out, line)
	}
	cleaned := strings.Join(out, "\n")
	cleaned = RedactProviderAddresses(cleaned)
	return CollapseWhitespace(cleaned)
}

// RedactProviderAddresses replaces addresses at consumer mailbox domains and
// leaves merchant addresses alone.
func RedactProviderAddresses(text string) string {
	return reEmailAddress.ReplaceAllStringFunc(text, func(addr string) string {
		m := reEmailAddress.FindStringSubmatch(addr)
		if len(m) == 2 && constants.IsConsumerEmailDomain(m[1]) {
			return RedactedAddress
		}
		return addr
	})
}
