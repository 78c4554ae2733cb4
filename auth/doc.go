// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth verifies the bearer tokens issued by the campus login service.

# Tokens

Tokens are HS256 JWTs signed with the shared JWT_SECRET. The payload carries
the caller under a "user" claim:

	{"user": {"id": "64f1c0...", "role": "voter"}, "iat": 1730000000, "exp": 1730003600}

Verify a token and read the caller:

	p, err := auth.VerifyToken(token, secret)

Tokens without "exp" never expire. Any other algorithm is rejected.
Parsing and signing use github.com/golang-jwt/jwt/v5.

IssueToken produces tokens in the same format. The login service owns
issuance in production; here it is used by tests and local tooling.

# Token Transport

TokenFromRequest checks, in order:

  - X-Auth-Token header (what the web client sends)
  - Authorization: Bearer <token>
  - ?token=<token> query parameter (websocket handshakes)

# Request Context

Middleware stores the verified caller on the request context:

	ctx = auth.WithPrincipal(ctx, p)
	p, ok := auth.FromContext(r.Context())

# ID Generation

Random hex IDs:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
