// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth verifies the caller identity supplied by the identity provider.

Authentication itself happens upstream. A gateway forwards the result in
four headers:

	X-User-Id: u-123
	X-User-Email: jane@uni.edu
	X-User-Role: voter
	X-Identity-Signature: <HMAC>

# Signatures

The signature is HMAC-SHA256 over "id\nemail\nrole" with the shared
identity secret, URL-safe base64 without padding:

	sig := auth.SignIdentity(user, secret)
	err := auth.VerifyIdentity(user, sig, secret)

FromRequest reads and verifies all four headers and rejects unknown roles.
*/
package auth
