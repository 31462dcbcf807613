// Package auth identifies the caller of a request.
//
// # Callers
//
// A Caller carries the user id and the request timestamp. It travels in the
// context so that lower layers can read it without extra parameters:
//
//	ctx = auth.WithCaller(ctx, &auth.Caller{UserID: "user-1"})
//	owner := auth.UserID(ctx)
//
// The conversation store filters thread listings by UserID and stamps new
// threads with it. Now(ctx) prefers the caller's timestamp over the clock so
// that items appended within one request share a creation time.
//
// # JWT Tokens
//
// Clients authenticate with HS256 JWTs signed with the configured jwt_secret.
// The "sub" claim is the user id:
//
//	verifier, err := auth.NewJWTVerifier([]byte(secret))
//	token, err := verifier.Generate("user-1", 24*time.Hour)
//	ctx, err = auth.Authenticate(ctx, verifier, token)
//
// # Error Handling
//
//   - ErrInvalidToken: signature, format, or signing method is wrong
//   - ErrExpiredToken: the exp claim has passed
//   - ErrMissingClaim: the token has no sub
//   - ErrNoSecret: a verifier was requested without a secret
package auth
