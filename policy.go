package cardtable

// MayAct reports whether the given user is allowed to act on the card: the
// card must be free or already held by that user. Every mutating operation
// checks this gate before touching a card; a failing gate is normal
// contention, not an error, and the card is silently skipped.
func MayAct(card *Card, userID string) bool {
	return card.Owner == "" || card.Owner == userID
}
