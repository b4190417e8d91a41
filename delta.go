package cardtable

// buildDeltas converts a committed change set into the minimal broadcast
// change list. Each entry names the card's current row ID, which for a
// flipped or shuffled card is the freshly inserted one, and carries only
// the fields that differ from the state at batch entry. Cards with nothing
// observable to report produce no entry; an empty result means the batch
// broadcasts nothing at all.
func buildDeltas(changes []*change) []Delta {
	deltas := []Delta{}

	for _, ch := range changes {
		d := Delta{ID: ch.card.ID}
		worth := ch.replace

		if ch.card.X != ch.old.X || ch.card.Y != ch.old.Y {
			// Positions move as a pair; a client re-rendering one axis
			// without the other would tear the drag.
			x, y := ch.card.X, ch.card.Y
			d.X, d.Y = &x, &y
			worth = true
		}
		if ch.card.Z != ch.old.Z {
			z := ch.card.Z
			d.Z = &z
			worth = true
		}
		if ch.card.Rotation != ch.old.Rotation {
			r := ch.card.Rotation
			d.Rotation = &r
			worth = true
		}
		if ch.card.FaceUp != ch.old.FaceUp {
			f := ch.card.FaceUp
			d.FaceUp = &f
			worth = true
		}
		if ch.card.URL != ch.old.URL {
			u := ch.card.URL
			d.URL = &u
			worth = true
		}

		if worth {
			deltas = append(deltas, d)
		}
	}

	return deltas
}
