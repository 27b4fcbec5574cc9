// Package google wraps the Google OAuth2 web-server flow used to connect a
// user's calendar: consent URL generation with PKCE, code exchange, refresh,
// revocation and identity lookup through the userinfo API.
package google
