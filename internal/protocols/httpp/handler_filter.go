package httpp

import (
	"net/http"
)

// reject requests with invalid paths or unsupported methods
// and set the Server header.
type handlerFilter struct {
	h http.Handler
}

func (h *handlerFilter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Server", "avplay")

	if r.URL.Path == "" || r.URL.Path[0] != '/' {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h.h.ServeHTTP(w, r)
}
