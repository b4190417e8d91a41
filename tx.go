package cardtable

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// TX is a single DB transaction on behalf of a specific user. All card
// reads are filtered to rows the user may touch: free cards and cards the
// user already holds. Cards held by anyone else are invisible here.
type TX struct {
	tx        *sql.Tx
	userID    string
	committed bool
}

const cardColumns = "id, owner, x, y, rotation, face_up, front, back, url, z, updated_at"

//
// Query methods.
//

// GetCards fetches the given cards, locking each row for the duration of
// the transaction. IDs that don't exist, are disabled, or belong to another
// user are silently absent from the result.
func (t *TX) GetCards(ids []int) (map[int]*Card, error) {
	q := "SELECT " + cardColumns + " FROM cards" +
		" WHERE id = ANY($1) AND enabled AND (owner IS NULL OR owner = $2)" +
		" ORDER BY id ASC FOR UPDATE"
	rows, err := t.tx.Query(q, pq.Array(ids), t.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := map[int]*Card{}

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards[card.ID] = card
	}

	return cards, rows.Err()
}

// GetAllCards fetches every card visible to the user, ordered by ID.
func (t *TX) GetAllCards() ([]*Card, error) {
	q := "SELECT " + cardColumns + " FROM cards" +
		" WHERE enabled AND (owner IS NULL OR owner = $1) ORDER BY id ASC"
	rows, err := t.tx.Query(q, t.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []*Card{}

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	return cards, rows.Err()
}

func scanCard(rows *sql.Rows) (*Card, error) {
	card := Card{}
	var owner sql.NullString

	err := rows.Scan(&card.ID, &owner, &card.X, &card.Y, &card.Rotation,
		&card.FaceUp, &card.Front, &card.Back, &card.URL, &card.Z, &card.UpdatedAt)
	if err != nil {
		return nil, err
	}

	card.Owner = owner.String
	return &card, nil
}

//
// Mutation methods.
//

// UpdateCard writes the card's mutable fields back in place.
func (t *TX) UpdateCard(card *Card) error {
	q := `UPDATE cards
	      SET owner = $1, x = $2, y = $3, rotation = $4, face_up = $5, url = $6, z = $7, updated_at = $8
	      WHERE id = $9`
	_, err := t.tx.Exec(q,
		nullable(card.Owner), card.X, card.Y, card.Rotation, card.FaceUp,
		card.URL, card.Z, card.UpdatedAt, card.ID)
	return err
}

// ReplaceCard retires the row with the given ID and inserts a fresh row
// carrying the card's state, returning the new authoritative ID. This is
// the identity-replace mechanism behind flip and shuffle: the board slot
// survives, the row ID does not.
func (t *TX) ReplaceCard(oldID int, card *Card) (int, error) {
	if _, err := t.tx.Exec("DELETE FROM cards WHERE id = $1", oldID); err != nil {
		return 0, err
	}

	q := `INSERT INTO cards (owner, x, y, rotation, face_up, front, back, url, z, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	      RETURNING id`
	row := t.tx.QueryRow(q,
		nullable(card.Owner), card.X, card.Y, card.Rotation, card.FaceUp,
		card.Front, card.Back, card.URL, card.Z, card.UpdatedAt)

	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

// Commit commits the current transaction.
func (t *TX) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.committed = true
	return nil
}

// Close closes the current transaction, rolling back if not committed.
func (t *TX) Close() {
	if !t.committed {
		t.tx.Rollback()
	}
}

// This helper intentionally lives here next to the time-sensitive writes:
// postgres timestamps are microsecond precision, so equality comparisons in
// tests should truncate the same way.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
