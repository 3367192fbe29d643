// Package auth provides pluggable authentication and rate limiting for
// requests flowing through the adapter.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth runs as transport middleware on the Fetch-style request, so
// rejections are ordinary responses written by the adapter and the
// authenticated identity travels in the request context.
package auth
