package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/erni27/imcache"
)

// cachedResponse - сохранённый ответ; заголовки не хранятся, их
// выставляют внешние middleware на каждом запросе
type cachedResponse struct {
	status int
	body   []byte
}

// recordingWriter пишет ответ клиенту и одновременно копит его для кеша
type recordingWriter struct {
	http.ResponseWriter
	status int
	body   []byte
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	rw.body = append(rw.body, p...)
	return rw.ResponseWriter.Write(p)
}

// ResponseCache кеширует успешные GET-ответы на ttl; любой изменяющий
// запрос сбрасывает кеш целиком, поэтому устаревший ответ живёт не
// дольше ttl и никогда не переживает запись. Ключ - путь с параметрами.
func ResponseCache(ttl time.Duration, maxEntries int) func(http.Handler) http.Handler {
	cache := imcache.New[string, cachedResponse](
		imcache.WithDefaultExpirationOption[string, cachedResponse](ttl),
		imcache.WithMaxEntriesLimitOption[string, cachedResponse](maxEntries, imcache.EvictionPolicyLRU),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				cache.RemoveAll()
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.URL.Path, "/graphql") {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.RequestURI()
			if hit, ok := cache.Get(key); ok {
				w.WriteHeader(hit.status)
				_, _ = w.Write(hit.body)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusOK {
				cache.Set(key, cachedResponse{status: rec.status, body: rec.body}, imcache.WithDefaultExpiration())
			}
		})
	}
}
