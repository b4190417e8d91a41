package cardtable

import (
	"math/rand"
	"sort"
	"testing"
)

func testCard(id int, owner string, faceUp bool, z int) *Card {
	card := &Card{
		ID:     id,
		X:      id * 10,
		Y:      id * 20,
		Owner:  owner,
		FaceUp: faceUp,
		Front:  "front.jpg",
		Back:   "back.jpg",
		Z:      z,
	}
	card.URL = card.Face()
	return card
}

func snapshot(cards ...*Card) map[int]*Card {
	m := map[int]*Card{}
	for _, c := range cards {
		m[c.ID] = c
	}
	return m
}

func testrng(seed int64) rng {
	return rand.New(rand.NewSource(seed))
}

func TestGrab(t *testing.T) {
	free := testCard(1, "", true, 0)
	mine := testCard(2, "alice", true, 0)
	theirs := testCard(3, "bob", true, 0)

	cards := snapshot(free, mine, theirs)
	batch := &Batch{Grabs: []int{1, 2, 3, 99}}

	changes := reconcile(cards, batch, "alice", testrng(1))

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %v", len(changes))
	}
	if changes[0].old.ID != 1 || changes[0].card.Owner != "alice" {
		t.Errorf("expected card 1 grabbed by alice, got %+v", changes[0].card)
	}
	if changes[0].replace {
		t.Error("grab must not replace identity")
	}

	// Grabbing your own card is a no-op, not a change.
	if mine.Owner != "alice" {
		t.Errorf("expected card 2 still owned by alice, got %q", mine.Owner)
	}
	// Grabbing someone else's card never changes ownership.
	if theirs.Owner != "bob" {
		t.Errorf("expected card 3 still owned by bob, got %q", theirs.Owner)
	}
}

func TestDrop(t *testing.T) {
	mine := testCard(1, "alice", true, 0)
	free := testCard(2, "", true, 0)
	theirs := testCard(3, "bob", true, 0)

	cards := snapshot(mine, free, theirs)
	batch := &Batch{Drops: []int{1, 2, 3}}

	changes := reconcile(cards, batch, "alice", testrng(1))

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %v", len(changes))
	}
	if changes[0].old.ID != 1 || changes[0].card.Owner != "" {
		t.Errorf("expected card 1 released, got %+v", changes[0].card)
	}
	if free.Owner != "" || theirs.Owner != "bob" {
		t.Error("dropping unowned or other-owned cards must be a no-op")
	}
}

func TestFlip(t *testing.T) {
	card := testCard(1, "alice", true, 0)
	cards := snapshot(card)

	changes := reconcile(cards, &Batch{Flips: []int{1}}, "alice", testrng(1))

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %v", len(changes))
	}
	ch := changes[0]
	if !ch.replace {
		t.Error("flip must replace identity")
	}
	if ch.card.FaceUp {
		t.Error("expected card face down after flip")
	}
	if ch.card.URL != "back.jpg" {
		t.Errorf("expected visible face %q, got %q", "back.jpg", ch.card.URL)
	}
}

func TestFlipInvolution(t *testing.T) {
	card := testCard(1, "alice", true, 3)
	cards := snapshot(card)
	origX, origY, origRot, origOwner := card.X, card.Y, card.Rotation, card.Owner

	// Two flips across two batches restore the perceived state.
	reconcile(cards, &Batch{Flips: []int{1}}, "alice", testrng(1))
	reconcile(cards, &Batch{Flips: []int{1}}, "alice", testrng(2))

	if !card.FaceUp {
		t.Error("expected card face up again after two flips")
	}
	if card.URL != "front.jpg" {
		t.Errorf("expected front showing, got %q", card.URL)
	}
	if card.X != origX || card.Y != origY || card.Rotation != origRot || card.Owner != origOwner {
		t.Error("flip must not disturb position, rotation, or owner")
	}
}

func TestFlipRespectsGate(t *testing.T) {
	theirs := testCard(1, "bob", true, 0)
	cards := snapshot(theirs)

	changes := reconcile(cards, &Batch{Flips: []int{1}}, "alice", testrng(1))

	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %v", len(changes))
	}
	if !theirs.FaceUp {
		t.Error("gate-failing flip must leave the card alone")
	}
}

func TestVisibleFaceInvariant(t *testing.T) {
	up := true
	down := false

	cards := snapshot(
		testCard(1, "", true, 0),
		testCard(2, "", false, 1),
		testCard(3, "alice", true, 2),
	)
	batch := &Batch{
		Flips:    []int{1},
		Shuffles: []int{1, 2, 3},
		Updates: []Patch{
			{ID: 2, FaceUp: &up},
			{ID: 3, FaceUp: &down},
		},
	}

	reconcile(cards, batch, "alice", testrng(7))

	for id, card := range cards {
		if card.URL != card.Face() {
			t.Errorf("card %v: visible face %q inconsistent with faceUp=%v", id, card.URL, card.FaceUp)
		}
	}
}

func TestShuffleBijection(t *testing.T) {
	c1 := testCard(1, "", false, 4)
	c2 := testCard(2, "", false, 17)
	c3 := testCard(3, "alice", false, 9)
	c4 := testCard(4, "", false, 23)
	cards := snapshot(c1, c2, c3, c4)

	before := []int{c1.Z, c2.Z, c3.Z, c4.Z}

	changes := reconcile(cards, &Batch{Shuffles: []int{1, 2, 3, 4}}, "alice", testrng(42))

	if len(changes) != 4 {
		t.Fatalf("expected 4 changes, got %v", len(changes))
	}
	for _, ch := range changes {
		if !ch.replace {
			t.Errorf("shuffled card %v must be replaced", ch.old.ID)
		}
	}

	after := []int{c1.Z, c2.Z, c3.Z, c4.Z}
	sort.Ints(before)
	sort.Ints(after)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("shuffle must permute z values: before %v, after %v", before, after)
		}
	}
}

func TestShuffleExcludesGateFailures(t *testing.T) {
	c1 := testCard(1, "", false, 4)
	c2 := testCard(2, "", false, 17)
	// Defense in depth: a card held by someone else shouldn't be in the
	// snapshot at all, but the gate still excludes it if it is.
	theirs := testCard(3, "bob", false, 9)
	cards := snapshot(c1, c2, theirs)

	changes := reconcile(cards, &Batch{Shuffles: []int{1, 2, 3}}, "alice", testrng(3))

	if theirs.Z != 9 {
		t.Errorf("excluded card must keep its z, got %v", theirs.Z)
	}
	for _, ch := range changes {
		if ch.old.ID == 3 {
			t.Error("excluded card must not appear in the change set")
		}
		if ch.card.Z == 9 && ch.old.ID != 3 {
			t.Errorf("z=9 belongs to the excluded card, not card %v", ch.old.ID)
		}
	}

	zs := map[int]bool{c1.Z: true, c2.Z: true}
	if !zs[4] || !zs[17] {
		t.Errorf("participants must share exactly the z values {4, 17}, got %v and %v", c1.Z, c2.Z)
	}
}

func TestShuffleDeterministic(t *testing.T) {
	run := func(seed int64) []int {
		c1 := testCard(1, "", false, 1)
		c2 := testCard(2, "", false, 2)
		c3 := testCard(3, "", false, 3)
		c4 := testCard(4, "", false, 4)
		c5 := testCard(5, "", false, 5)
		cards := snapshot(c1, c2, c3, c4, c5)

		reconcile(cards, &Batch{Shuffles: []int{1, 2, 3, 4, 5}}, "alice", testrng(seed))
		return []int{c1.Z, c2.Z, c3.Z, c4.Z, c5.Z}
	}

	a := run(99)
	b := run(99)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed must reproduce the same permutation: %v vs %v", a, b)
		}
	}
}

func TestShuffleBeforeOwnershipChanges(t *testing.T) {
	// The card is held by alice at batch entry; the same batch drops it.
	// Shuffle eligibility reflects pre-batch ownership, so it still
	// participates, and the drop still lands afterwards.
	card := testCard(1, "alice", false, 5)
	other := testCard(2, "", false, 8)
	cards := snapshot(card, other)

	batch := &Batch{
		Drops:    []int{1},
		Shuffles: []int{1, 2},
	}
	changes := reconcile(cards, batch, "alice", testrng(11))

	var ch1 *change
	for _, ch := range changes {
		if ch.old.ID == 1 {
			ch1 = ch
		}
	}
	if ch1 == nil {
		t.Fatal("expected card 1 in the change set")
	}
	if !ch1.replace {
		t.Error("card 1 was shuffled, so it must be replaced")
	}
	if ch1.card.Owner != "" {
		t.Errorf("card 1 must end the batch released, got owner %q", ch1.card.Owner)
	}
}

func TestUpdatePatches(t *testing.T) {
	x, y, rot, z := 5, 7, 90, 12

	card := testCard(1, "alice", true, 0)
	cards := snapshot(card)

	batch := &Batch{Updates: []Patch{
		{ID: 1, X: &x, Y: &y, Rotation: &rot, Z: &z},
	}}
	changes := reconcile(cards, batch, "alice", testrng(1))

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %v", len(changes))
	}
	if card.X != 5 || card.Y != 7 || card.Rotation != 90 || card.Z != 12 {
		t.Errorf("patch not applied: %+v", card)
	}
	if changes[0].replace {
		t.Error("update must not replace identity")
	}
}

func TestUpdatePartialPositionIsNoOp(t *testing.T) {
	x := 5

	card := testCard(1, "", true, 0)
	cards := snapshot(card)
	origX, origY := card.X, card.Y

	changes := reconcile(cards, &Batch{Updates: []Patch{{ID: 1, X: &x}}}, "alice", testrng(1))

	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %v", len(changes))
	}
	if card.X != origX || card.Y != origY {
		t.Error("x without y must not move the card")
	}
}

func TestUpdateUnchangedValuesAreNotChanges(t *testing.T) {
	card := testCard(1, "", true, 3)
	cards := snapshot(card)
	x, y := card.X, card.Y

	changes := reconcile(cards, &Batch{Updates: []Patch{{ID: 1, X: &x, Y: &y}}}, "alice", testrng(1))

	if len(changes) != 0 {
		t.Fatalf("patching a field to its current value is not a change, got %v changes", len(changes))
	}
}

func TestInvalidEntriesDontAbortBatch(t *testing.T) {
	x := 5

	free := testCard(1, "", true, 0)
	cards := snapshot(free)

	batch := &Batch{
		Grabs:   []int{1},
		Updates: []Patch{{ID: 999, X: &x}},
	}
	changes := reconcile(cards, batch, "alice", testrng(1))

	if len(changes) != 1 {
		t.Fatalf("expected the valid grab to land, got %v changes", len(changes))
	}
	if free.Owner != "alice" {
		t.Errorf("expected card 1 grabbed despite the bogus update, got owner %q", free.Owner)
	}
}

func TestGrabThenMoveInOneBatch(t *testing.T) {
	x, y := 5, 7

	card := testCard(1, "", true, 0)
	cards := snapshot(card)

	batch := &Batch{
		Grabs:   []int{1},
		Updates: []Patch{{ID: 1, X: &x, Y: &y}},
	}
	changes := reconcile(cards, batch, "alice", testrng(1))

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %v", len(changes))
	}
	if card.Owner != "alice" || card.X != 5 || card.Y != 7 {
		t.Errorf("grab and move must both land: %+v", card)
	}
}

func TestEmptyBatch(t *testing.T) {
	cards := snapshot(testCard(1, "", true, 0))

	changes := reconcile(cards, &Batch{}, "alice", testrng(1))

	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %v", len(changes))
	}
}
