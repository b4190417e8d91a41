package cardtable

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/websocket"
)

// API implements the card table's HTTP surface: auth endpoints, the card
// snapshot and batch-submit endpoints, and the websocket the broadcast
// channel rides on.
type API struct {
	auth     *Auth
	impl     *Impl
	hub      *Hub
	limiter  *RateLimiter
	registry *prometheus.Registry
	devMode  bool
}

// NewAPI creates a new API.
func NewAPI(auth *Auth, impl *Impl, hub *Hub, limiter *RateLimiter, registry *prometheus.Registry, devMode bool) *API {
	return &API{
		auth:     auth,
		impl:     impl,
		hub:      hub,
		limiter:  limiter,
		registry: registry,
		devMode:  devMode,
	}
}

// Serve serves the API on the given endpoint.
func (a *API) Serve(addr string) error {
	return http.ListenAndServe(addr, a.Router())
}

// Router builds the route table.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/status", a.status)

	r.Get("/api/users", a.listUsers)
	r.Post("/api/users", a.newUser)
	r.Post("/api/login", a.login)
	r.Post("/api/logout", a.logout)

	r.Get("/current-user/cards", a.getCards)
	r.Post("/current-user/cards", a.postCards)
	r.Post("/api/cards", a.newCard)

	r.Get("/ws", a.attach)
	r.Handle("/metrics", MetricsHandler(a.registry))

	if a.devMode {
		r.Post("/log", a.debugLog)
	}

	return r
}

func (a *API) authorize(req *http.Request) (string, error) {
	sid, err := req.Cookie("sid")
	if err != nil {
		return "", ErrUnauthorized
	}
	return a.auth.Authorize(sid.Value)
}

// GET /status -- health check.
func (a *API) status(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(200)
	marshal(Status{Message: "OK", Success: true}, res)
}

// GET /api/users -- list registered users.
func (a *API) listUsers(res http.ResponseWriter, req *http.Request) {
	if _, err := a.authorize(req); err != nil {
		writeErr(res, err)
		return
	}

	ids, err := a.auth.ListUsers()
	if err != nil {
		writeErr(res, err)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(200)
	marshal(UserList{Users: ids}, res)
}

// POST /api/users -- register a new user.
func (a *API) newUser(res http.ResponseWriter, req *http.Request) {
	login := Login{}
	if err := unmarshal(req.Body, &login); err != nil {
		res.WriteHeader(400)
		return
	}

	if err := a.auth.NewUser(login.ID, login.Password); err != nil {
		res.WriteHeader(400)
		res.Write([]byte(err.Error() + "\n"))
		return
	}

	res.Header().Set("Location", "/api/users/"+url.PathEscape(login.ID))
	res.WriteHeader(201)
}

// POST /api/login -- log in and receive a session cookie.
func (a *API) login(res http.ResponseWriter, req *http.Request) {
	login := Login{}
	if err := unmarshal(req.Body, &login); err != nil {
		res.WriteHeader(400)
		return
	}

	sid, err := a.auth.Login(login.ID, login.Password)
	if err != nil {
		res.WriteHeader(400)
		res.Write([]byte(err.Error() + "\n"))
		return
	}

	http.SetCookie(res, &http.Cookie{
		Name:    "sid",
		Value:   sid,
		Path:    "/",
		Expires: time.Now().Add(sessionTTL),
	})
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(200)
	marshal(SID{SID: sid}, res)
}

// POST /api/logout -- clear the session cookie.
func (a *API) logout(res http.ResponseWriter, req *http.Request) {
	http.SetCookie(res, &http.Cookie{
		Name:    "sid",
		Value:   "",
		Path:    "/",
		Expires: time.Now().Add(-1 * time.Hour),
	})
	res.WriteHeader(200)
}

// GET /current-user/cards -- the full visible snapshot, for bootstrap and
// reconnect.
func (a *API) getCards(res http.ResponseWriter, req *http.Request) {
	userID, err := a.authorize(req)
	if err != nil {
		writeErr(res, err)
		return
	}

	cards, err := a.impl.GetCards(userID)
	if err != nil {
		writeErr(res, err)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(200)
	marshal(CardList{Cards: cards}, res)
}

// POST /current-user/cards -- submit one action batch.
func (a *API) postCards(res http.ResponseWriter, req *http.Request) {
	userID, err := a.authorize(req)
	if err != nil {
		writeErr(res, err)
		return
	}

	if !a.limiter.Allow(userID) {
		res.WriteHeader(429)
		return
	}

	batch := Batch{}
	if err := unmarshal(req.Body, &batch); err != nil {
		res.WriteHeader(400)
		return
	}

	if _, err := a.impl.ApplyBatch(userID, &batch); err != nil {
		writeErr(res, err)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(200)
	marshal(BatchResult{Success: true}, res)
}

// POST /api/cards -- place a new card on the table.
func (a *API) newCard(res http.ResponseWriter, req *http.Request) {
	if _, err := a.authorize(req); err != nil {
		writeErr(res, err)
		return
	}

	create := NewCard{}
	if err := unmarshal(req.Body, &create); err != nil {
		res.WriteHeader(400)
		return
	}
	if create.Front == "" || create.Back == "" {
		res.WriteHeader(400)
		res.Write([]byte("front and back are required\n"))
		return
	}

	id, err := a.impl.NewCard(&Card{
		X:        create.X,
		Y:        create.Y,
		Rotation: create.Rotation,
		FaceUp:   create.FaceUp,
		Front:    create.Front,
		Back:     create.Back,
		Z:        create.Z,
	})
	if err != nil {
		writeErr(res, err)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(201)
	marshal(CardID{ID: id}, res)
}

// GET /ws -- attach a session to the broadcast channel. The socket is
// listen-only; mutations still go over the batch endpoint.
func (a *API) attach(res http.ResponseWriter, req *http.Request) {
	userID, err := a.authorize(req)
	if err != nil {
		writeErr(res, err)
		return
	}

	handler := websocket.Handler(func(conn *websocket.Conn) {
		id := a.hub.Register(userID, json.NewEncoder(conn))
		defer a.hub.Deregister(id)

		// Hold the connection until the client goes away.
		io.Copy(io.Discard, conn)
	})
	handler.ServeHTTP(res, req)
}

// POST /log -- forward a client-side debug message to the server log.
// Only routed in dev mode.
func (a *API) debugLog(res http.ResponseWriter, req *http.Request) {
	userID, err := a.authorize(req)
	if err != nil {
		writeErr(res, err)
		return
	}

	msg := LogMessage{}
	if err := unmarshal(req.Body, &msg); err != nil {
		res.WriteHeader(400)
		return
	}

	slog.Info("from client", "user", userID, "message", msg.Message)

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(200)
	marshal(Status{Message: "OK", Success: true}, res)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(res, req.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, req)

		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String())
	})
}

func writeErr(res http.ResponseWriter, err error) {
	var e *Error
	if errors.As(err, &e) {
		res.Header().Set("Content-Type", "application/json")
		res.WriteHeader(e.HTTP)
		marshal(e, res)
		return
	}

	res.WriteHeader(500)
	res.Write([]byte(err.Error() + "\n"))
}

func marshal(src interface{}, dst io.Writer) {
	bs, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	dst.Write(bs)
}

func unmarshal(src io.Reader, dst interface{}) error {
	bs, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	return json.Unmarshal(bs, dst)
}
