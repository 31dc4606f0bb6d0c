package api

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// corsMethods mirrors the method list browsers are told they may use.
var corsMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPut,
	http.MethodPatch,
	http.MethodPost,
	http.MethodDelete,
}

var corsMethodsHeader = strings.Join(corsMethods, ",")

// CORS returns a permissive cross-origin stage. Every response carries
// Access-Control-Allow-Origin: *, and every OPTIONS request is answered with
// 204 without reaching the router. Full preflights (Origin plus
// Access-Control-Request-Method) go through rs/cors, which echoes the
// requested method and headers; any other OPTIONS gets the whole method list.
func CORS() func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       corsMethods,
		AllowedHeaders:       []string{"*"},
		OptionsSuccessStatus: http.StatusNoContent,
	})

	return func(next http.Handler) http.Handler {
		h := c.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")

			if r.Method == http.MethodOptions && !isFullPreflight(r) {
				w.Header().Set("Access-Control-Allow-Methods", corsMethodsHeader)
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
					w.Header().Add("Vary", "Access-Control-Request-Headers")
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			h.ServeHTTP(w, r)
		})
	}
}

func isFullPreflight(r *http.Request) bool {
	return r.Header.Get("Origin") != "" && r.Header.Get("Access-Control-Request-Method") != ""
}
