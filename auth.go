package cardtable

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// sessionTTL is how long a signed session ID stays valid.
const sessionTTL = 14 * 24 * time.Hour

type clock interface {
	Now() time.Time
}

type realclock struct{}

func (realclock) Now() time.Time {
	return time.Now()
}

// keyring holds the signing keys by version. New sessions are signed with
// the current version; old versions stay in the map so their sessions keep
// verifying until they expire.
type keyring struct {
	cur  string
	keys map[string][]byte
}

func (r keyring) signingKey() (string, []byte) {
	return r.cur, r.keys[r.cur]
}

func (r keyring) lookup(version string) ([]byte, bool) {
	key, ok := r.keys[version]
	return key, ok
}

// Auth implements user registration and session authentication. The core
// itself only ever sees the resolved user ID this layer hands back.
type Auth struct {
	db    *DB
	ring  keyring
	clock clock
}

// NewAuth creates a new authenticator with a single signing key version.
func NewAuth(db *DB, keystr string) (*Auth, error) {
	key, err := base64.StdEncoding.DecodeString(keystr)
	if err != nil {
		return nil, fmt.Errorf("invalid keystr: %w", err)
	}

	return &Auth{
		db: db,
		ring: keyring{
			cur:  "1",
			keys: map[string][]byte{"1": key},
		},
		clock: realclock{},
	}, nil
}

// ListUsers lists all the currently registered users.
func (a *Auth) ListUsers() ([]string, error) {
	return a.db.ListUsers()
}

// NewUser registers a new user.
func (a *Auth) NewUser(id, pw string) error {
	if id == "" {
		return errors.New("bad request: no id")
	}
	if pw == "" {
		return errors.New("bad request: no password")
	}

	return a.db.NewUser(id, hashPassword(pw))
}

// Login checks a user's password and returns a session ID on success.
func (a *Auth) Login(id, pw string) (string, error) {
	if id == "" {
		return "", errors.New("bad request: no id")
	}
	if pw == "" {
		return "", errors.New("bad request: no password")
	}

	hash, err := a.db.GetUserHash(id)
	if err != nil {
		return "", err
	}

	if !checkPassword(pw, hash) {
		return "", errors.New("bad request: invalid password")
	}

	token := sessionToken{
		UserID:  id,
		Expires: a.clock.Now().Add(sessionTTL).Unix(),
	}
	return token.encode(a.ring), nil
}

// Authorize verifies a session ID and returns the user ID it was issued
// for. This resolved, trusted identity is what every core operation keys
// its ownership checks on.
func (a *Auth) Authorize(sid string) (string, error) {
	token, ok := decodeToken(sid, a.ring)
	if !ok || token.expired(a.clock.Now()) {
		return "", ErrUnauthorized
	}
	return token.UserID, nil
}

func hashPassword(pw string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(hash)
}

func checkPassword(pw, hash string) bool {
	hb, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(hb, []byte(pw)) == nil
}

// sessionToken is the payload inside a session ID. On the wire it rides as
// keyversion.body.signature, all dot-separated base64, with an HMAC-SHA256
// over the JSON body.
type sessionToken struct {
	UserID  string `json:"i"`
	Expires int64  `json:"e"`
}

func (t sessionToken) expired(now time.Time) bool {
	return time.Unix(t.Expires, 0).Before(now)
}

func (t sessionToken) encode(ring keyring) string {
	body, err := json.Marshal(&t)
	if err != nil {
		panic(err)
	}

	version, key := ring.signingKey()
	sig := sign(body, key)

	return version +
		"." +
		base64.StdEncoding.EncodeToString(body) +
		"." +
		base64.StdEncoding.EncodeToString(sig)
}

// decodeToken parses and signature-checks a session ID. Expiry is the
// caller's problem; a forged or mangled token never makes it out of here.
func decodeToken(in string, ring keyring) (sessionToken, bool) {
	version, rest, ok := strings.Cut(in, ".")
	if !ok {
		return sessionToken{}, false
	}
	rawBody, rawSig, ok := strings.Cut(rest, ".")
	if !ok {
		return sessionToken{}, false
	}

	key, ok := ring.lookup(version)
	if !ok {
		return sessionToken{}, false
	}

	body, err := base64.StdEncoding.DecodeString(rawBody)
	if err != nil {
		return sessionToken{}, false
	}
	sig, err := base64.StdEncoding.DecodeString(rawSig)
	if err != nil {
		return sessionToken{}, false
	}

	if subtle.ConstantTimeCompare(sig, sign(body, key)) != 1 {
		return sessionToken{}, false
	}

	token := sessionToken{}
	if err := json.Unmarshal(body, &token); err != nil {
		return sessionToken{}, false
	}
	return token, true
}

func sign(bs, key []byte) []byte {
	hasher := hmac.New(sha256.New, key)
	if _, err := hasher.Write(bs); err != nil {
		panic(err)
	}
	return hasher.Sum(nil)
}
