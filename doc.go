/*
Package sessionstore keeps web sessions in Redis.

Each client holds only an unguessable session id in a cookie; the session
content lives server side under that id. Requests served in parallel for the
same client are reconciled key by key: a request writes back only the keys it
changed, so sibling requests touching other keys do not lose their work.

# Usage

	store, err := sessionstore.New(ctx, "redis://localhost:6379/0",
		sessionstore.WithExpireAfter(30*time.Minute),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		sess := sessionhttp.FromContext(r.Context())
		n, _ := sess.GetInt("visits")
		sess.Set("visits", n+1)
	})
	log.Fatal(http.ListenAndServe(":8080", store.Middleware()(mux)))

Handlers reach the session and its options through the functions of
pkg/adapters/http, imported above as sessionhttp. Setting Renew moves the session to a new id, Drop deletes
it and Defer keeps the cookie out of the response.

Without Redis, WithBackend accepts any ports.Backend, such as the in-memory
one in pkg/adapters/memory.
*/
package sessionstore
