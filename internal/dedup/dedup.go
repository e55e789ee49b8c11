// Package dedup filters per-page contact entries so that every email and
// phone appears in at most one accepted entry of a run.
package dedup

import (
	"github.com/FranksOps/contactscout/internal/contact"
	"github.com/FranksOps/contactscout/internal/metrics"
)

// State is the run's record of contacts already emitted. It must be fed
// entries in search-rank order by a single goroutine; earlier entries own
// contested contacts.
type State struct {
	seen     contact.ContactSet
	accepted int
	dropped  int
}

// NewState returns an empty State for one run.
func NewState() *State { return &State{} }

// Accept subtracts the already-seen contacts from e. If nothing new
// remains, e is dropped and ok is false. Otherwise the new contacts are
// recorded and returned as a copy of e carrying only them.
func (s *State) Accept(e contact.Entry) (contact.Entry, bool) {
	emails := e.Contacts.Emails.Diff(s.seen.Emails)
	phones := e.Contacts.Phones.Diff(s.seen.Phones)
	suppressedEmails := e.Contacts.Emails.Len() - emails.Len()
	suppressedPhones := e.Contacts.Phones.Len() - phones.Len()

	if emails.Empty() && phones.Empty() {
		s.dropped++
		metrics.RecordDedup(false, suppressedEmails, suppressedPhones)
		return contact.Entry{}, false
	}

	s.seen.Emails.Merge(emails)
	s.seen.Phones.Merge(phones)
	s.accepted++
	metrics.RecordDedup(true, suppressedEmails, suppressedPhones)

	return contact.Entry{
		Domain:   e.Domain,
		URL:      e.URL,
		Contacts: contact.ContactSet{Emails: emails, Phones: phones},
	}, true
}

// Seen reports how many unique emails and phones have been accepted.
func (s *State) Seen() (emails, phones int) {
	return s.seen.Emails.Len(), s.seen.Phones.Len()
}

// Counts reports accepted and dropped entry totals.
func (s *State) Counts() (accepted, dropped int) { return s.accepted, s.dropped }

// Aggregate runs entries through state in order and returns the survivors.
func Aggregate(entries []contact.Entry, state *State) []contact.Entry {
	out := make([]contact.Entry, 0, len(entries))
	for _, e := range entries {
		if kept, ok := state.Accept(e); ok {
			out = append(out, kept)
		}
	}
	return out
}
