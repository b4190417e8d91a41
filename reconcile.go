package cardtable

import "sort"

// A change tracks one card across a batch: the state it had when the batch
// fetched it, the working state the batch's phases mutate, and whether the
// row's identity must be replaced on write-back.
type change struct {
	old     Card
	card    *Card
	replace bool
}

// changed reports whether any field a client can observe differs from the
// state at batch entry.
func (c *change) changed() bool {
	return c.card.Owner != c.old.Owner ||
		c.card.X != c.old.X ||
		c.card.Y != c.old.Y ||
		c.card.Rotation != c.old.Rotation ||
		c.card.FaceUp != c.old.FaceUp ||
		c.card.URL != c.old.URL ||
		c.card.Z != c.old.Z
}

// reconcile applies one user's batch to a snapshot of the cards it touches.
//
// The snapshot has already been filtered at the read boundary: it contains
// only cards that are free or held by the acting user, so an ID missing
// from it is either bogus or a card someone else is holding. Both are
// silently skipped; a batch always completes.
//
// The phases run in a fixed order: shuffle, grab, drop, flip, update.
// Shuffle runs first so its eligibility reflects ownership as it was before
// the batch, not ownership that grab or drop establish later in the same
// batch. Later phases see the fields earlier phases wrote.
func reconcile(cards map[int]*Card, batch *Batch, userID string, rng rng) []*change {
	changes := map[int]*change{}

	touch := func(card *Card) *change {
		ch, ok := changes[card.ID]
		if !ok {
			ch = &change{old: *card, card: card}
			changes[card.ID] = ch
		}
		return ch
	}

	// Shuffle: permute the z values of the eligible cards among themselves.
	// Cards failing the gate don't participate and don't perturb the
	// permutation of the ones that do.
	shuffled := []*Card{}
	seen := map[int]struct{}{}
	for _, id := range batch.Shuffles {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		card, ok := cards[id]
		if !ok || !MayAct(card, userID) {
			continue
		}
		shuffled = append(shuffled, card)
	}

	zs := make([]int, len(shuffled))
	for i, card := range shuffled {
		zs[i] = card.Z
	}
	permute(zs, rng)

	for i, card := range shuffled {
		ch := touch(card)
		ch.card.Z = zs[i]
		ch.replace = true
	}

	// Grab: take any requested card that is currently free. A card already
	// held, by this user or anyone else, is left untouched.
	for _, id := range batch.Grabs {
		card, ok := cards[id]
		if !ok || card.Owner != "" {
			continue
		}
		touch(card).card.Owner = userID
	}

	// Drop: release any requested card this user is holding.
	for _, id := range batch.Drops {
		card, ok := cards[id]
		if !ok || card.Owner != userID {
			continue
		}
		touch(card).card.Owner = ""
	}

	// Flip: invert the facing and recompute the visible face. Identity is
	// replaced so the new facing ships as a fresh row.
	for _, id := range batch.Flips {
		card, ok := cards[id]
		if !ok || !MayAct(card, userID) {
			continue
		}

		ch := touch(card)
		ch.card.FaceUp = !ch.card.FaceUp
		ch.card.URL = ch.card.Face()
		ch.replace = true
	}

	// Update: apply partial patches, sorted by ID so the pairing with the
	// fetched set is deterministic. A position patch needs both x and y;
	// one without the other is a no-op for that card.
	patches := make([]Patch, len(batch.Updates))
	copy(patches, batch.Updates)
	sort.SliceStable(patches, func(i, j int) bool { return patches[i].ID < patches[j].ID })

	for _, p := range patches {
		card, ok := cards[p.ID]
		if !ok || !MayAct(card, userID) {
			continue
		}

		ch := touch(card)
		if p.X != nil && p.Y != nil {
			ch.card.X = *p.X
			ch.card.Y = *p.Y
		}
		if p.Rotation != nil {
			ch.card.Rotation = *p.Rotation
		}
		if p.FaceUp != nil {
			ch.card.FaceUp = *p.FaceUp
			ch.card.URL = ch.card.Face()
		}
		if p.Z != nil {
			ch.card.Z = *p.Z
		}
	}

	// Keep only the cards that actually need a write, in a stable order.
	out := []*change{}
	for _, ch := range changes {
		if ch.replace || ch.changed() {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].old.ID < out[j].old.ID })

	return out
}

// permute shuffles zs in place with a Fisher–Yates pass. The result is a
// bijection over the input values: nothing is invented or dropped.
func permute(zs []int, rng rng) {
	for i := len(zs) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		zs[i], zs[j] = zs[j], zs[i]
	}
}
