// ABOUTME: Package auth implements the sign-in gate for the chat surface
// ABOUTME: Config-declared users, bcrypt passwords, HS256 session tokens

// Package auth gates every chat surface behind a signed-in user.
//
// Accounts are declared in configuration with bcrypt password hashes;
// there is no signup or password-reset flow. A successful login issues
// an HS256 session token, carried as a cookie by the browser or as a
// bearer header by API clients. Agents authenticate separately with a
// shared ingest token.
package auth
