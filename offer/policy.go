// Package offer decides when to present the pay-to-prioritize escalation offer.
package offer

// Threshold is the queue position beyond which the offer is shown.
const Threshold = 20

// Policy tracks whether the offer is currently displayed.
// Not safe for concurrent use; the owner serializes access.
type Policy struct {
	displayed bool
}

// ShouldRender reports whether the offer must be (re-)rendered now.
// It is offered when position > Threshold or a previous escalation failed.
// An already displayed offer is rendered again only to show an error.
func (p *Policy) ShouldRender(position int, bumpError bool) bool {
	if position <= Threshold && !bumpError {
		return false
	}
	if p.displayed && !bumpError {
		return false
	}
	p.displayed = true
	return true
}

// Displayed reports whether the offer has been rendered since the last Reset.
func (p *Policy) Displayed() bool {
	return p.displayed
}

// Reset forgets the displayed offer.
func (p *Policy) Reset() {
	p.displayed = false
}
