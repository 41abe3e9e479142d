package http

import "net/http"

// HealthHandler reports process liveness. It deliberately checks nothing
// else: readiness of the database surfaces through request errors, and the
// endpoint stays useful while dependencies are down.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
