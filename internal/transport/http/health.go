package http

import (
	"encoding/json"
	stdhttp "net/http"
)

// HealthHandler reports basic liveness. Load balancers and webhook
// providers poll this; it must not touch the database.
func HealthHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
