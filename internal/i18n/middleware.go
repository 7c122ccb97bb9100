package i18n

import "net/http"

// Middleware picks a localizer from the Accept-Language header of each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := Negotiate(r.Header.Get("Accept-Language"))
		ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
		w.Header().Set("Content-Language", lang)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
