package cardtable

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB implements the card table's DB access layer over a pooled connection.
type DB struct {
	url string
	db  *sql.DB
}

// NewDB opens a new DB on the given postgres URL.
func NewDB(url string) (*DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}

	return &DB{
		url: url,
		db:  db,
	}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate applies any pending schema migrations. Already up to date is not
// an error.
func (d *DB) Migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, d.url)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// ListUsers lists all the currently registered users.
func (d *DB) ListUsers() ([]string, error) {
	rows, err := d.db.Query("SELECT id FROM users WHERE enabled ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// NewUser creates a new user in the DB.
func (d *DB) NewUser(userID string, hash string) error {
	_, err := d.db.Exec("INSERT INTO users (id, hash) VALUES ($1, $2)", userID, hash)
	if err != nil {
		var pe *pq.Error
		if errors.As(err, &pe) && pe.Code.Name() == "unique_violation" {
			return errors.New("user already exists")
		}
		return fmt.Errorf("database error: %w", err)
	}

	return nil
}

// GetUserHash gets the given user's password hash.
func (d *DB) GetUserHash(userID string) (string, error) {
	hash := ""
	row := d.db.QueryRow("SELECT hash FROM users WHERE id = $1 AND enabled", userID)
	if err := row.Scan(&hash); err != nil {
		if err == sql.ErrNoRows {
			return "", errors.New("no such user")
		}
		return "", err
	}

	return hash, nil
}

// InsertCard inserts a brand-new card at table setup and returns its ID.
func (d *DB) InsertCard(card *Card) (int, error) {
	q := `INSERT INTO cards (owner, x, y, rotation, face_up, front, back, url, z, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	      RETURNING id`
	row := d.db.QueryRow(q,
		nullable(card.Owner), card.X, card.Y, card.Rotation, card.FaceUp,
		card.Front, card.Back, card.Face(), card.Z)

	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

// NewTX begins a new transaction on behalf of the given user. Every card
// read inside it is filtered to rows that user may see.
func (d *DB) NewTX(userID string) (*TX, error) {
	dbtx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}

	return &TX{
		tx:     dbtx,
		userID: userID,
	}, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
