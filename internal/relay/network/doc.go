// Package network performs HTTP requests on behalf of guest modules.
//
// Every request gets the configured User-Agent and, when the cookie jar has
// an entry for the request's origin, a Cookie header. Both are added only if
// the guest did not set that header itself.
//
// Each Execute call makes exactly one network attempt. The underlying
// resty client runs over a pooled retryablehttp transport with retries
// disabled; retry policy belongs to the guest, which can simply issue the
// request again. A per-origin circuit breaker fails fast without touching
// the network after repeated transport failures.
//
// Responses are fully read, decompressed when the server used
// gzip/deflate/zstd, transcoded to UTF-8 when a non-UTF-8 charset was
// declared, and rejected with NonUTF8Body when the result still is not
// valid text.
package network
