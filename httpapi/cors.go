package httpapi

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"
)

// OriginAllowList decides which browser origins may call the API. An empty
// list allows every origin, and requests without an Origin header are always
// allowed.
type OriginAllowList []string

func NewOriginAllowList(origins []string) OriginAllowList {
	list := make(OriginAllowList, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" || slices.Contains(list, origin) {
			continue
		}
		list = append(list, origin)
	}
	return list
}

func (l OriginAllowList) Allowed(origin string) bool {
	if strings.TrimSpace(origin) == "" || len(l) == 0 {
		return true
	}
	return slices.Contains(l, origin)
}

// CORS rejects origins outside the allow-list with a 500 JSON body and lets
// rs/cors answer preflights and set the response headers for the rest.
func CORS(allowList OriginAllowList) Middleware {
	handler := cors.New(cors.Options{
		AllowOriginFunc: allowList.Allowed,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return func(next http.Handler) http.Handler {
		wrapped := handler.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !allowList.Allowed(origin) {
				writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("CORS blocked for origin %s", origin))
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
