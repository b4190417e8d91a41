package cardtable

import "time"

// A Card is one entity on the shared table. Owner is the empty string when
// the card is free; only the owner (or anyone, while free) may act on it.
//
// Front and Back are opaque references to the card's two faces; URL is
// whichever of the two is currently showing and is kept consistent with
// FaceUp at all times.
type Card struct {
	ID        int       `json:"id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Owner     string    `json:"owner,omitempty"`
	FaceUp    bool      `json:"faceUp"`
	Front     string    `json:"-"`
	Back      string    `json:"-"`
	URL       string    `json:"url"`
	Rotation  int       `json:"rotation"`
	Z         int       `json:"z"`
	UpdatedAt time.Time `json:"-"`
}

// Face returns the content reference that should be showing for the card's
// current facing.
func (c *Card) Face() string {
	if c.FaceUp {
		return c.Front
	}
	return c.Back
}

// A Patch is one partial update from a client. Pointer fields distinguish
// "absent" from a zero value; absent fields are left unchanged. X and Y are
// only applied when both are present.
type Patch struct {
	ID       int   `json:"id"`
	X        *int  `json:"x,omitempty"`
	Y        *int  `json:"y,omitempty"`
	Rotation *int  `json:"rotation,omitempty"`
	FaceUp   *bool `json:"faceUp,omitempty"`
	Z        *int  `json:"z,omitempty"`
}

// A Batch is the full set of actions submitted by one user in one request.
type Batch struct {
	Grabs    []int   `json:"grabs,omitempty"`
	Drops    []int   `json:"drops,omitempty"`
	Flips    []int   `json:"flips,omitempty"`
	Shuffles []int   `json:"shuffles,omitempty"`
	Updates  []Patch `json:"cardUpdates,omitempty"`
}

// IDs returns every card ID the batch mentions, deduplicated.
func (b *Batch) IDs() []int {
	seen := map[int]struct{}{}
	ids := []int{}

	add := func(id int) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	for _, id := range b.Grabs {
		add(id)
	}
	for _, id := range b.Drops {
		add(id)
	}
	for _, id := range b.Flips {
		add(id)
	}
	for _, id := range b.Shuffles {
		add(id)
	}
	for _, u := range b.Updates {
		add(u.ID)
	}

	return ids
}

// A Delta is the per-card change record broadcast to clients after a batch
// commits. ID is always the card's current row ID, even when the batch
// replaced the row; only the fields that actually changed are present.
type Delta struct {
	ID       int     `json:"id"`
	X        *int    `json:"x,omitempty"`
	Y        *int    `json:"y,omitempty"`
	Z        *int    `json:"z,omitempty"`
	Rotation *int    `json:"rotation,omitempty"`
	FaceUp   *bool   `json:"faceUp,omitempty"`
	URL      *string `json:"url,omitempty"`
}

// A CardUpdate is the broadcast event fanned out to every connected session
// after a batch commits with at least one delta.
type CardUpdate struct {
	Type    string  `json:"type"`
	From    string  `json:"fromUserId"`
	Updates []Delta `json:"updates"`
}

// CardList is the snapshot response for GET /current-user/cards.
type CardList struct {
	Cards []*Card `json:"cards"`
}

// BatchResult is the response to a batch submit.
type BatchResult struct {
	Success bool `json:"success"`
}

// NewCard is a request to place a new card on the table. Front and Back
// are only ever accepted here; snapshots expose just the visible face.
type NewCard struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Rotation int    `json:"rotation"`
	FaceUp   bool   `json:"faceUp"`
	Front    string `json:"front"`
	Back     string `json:"back"`
	Z        int    `json:"z"`
}

// CardID is a response naming a single card.
type CardID struct {
	ID int `json:"id"`
}

// UserList is a list of users.
type UserList struct {
	Users []string `json:"users"`
}

// Login is a request to log in.
type Login struct {
	ID       string `json:"id"`
	Password string `json:"pw"`
}

// SID is a response containing a session ID.
type SID struct {
	SID string `json:"sid"`
}

// Status is the health-check response.
type Status struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// LogMessage is a client-side debug message forwarded to the server log.
type LogMessage struct {
	Message string `json:"message"`
}
