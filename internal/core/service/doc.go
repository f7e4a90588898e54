// Package service implements the authentication collaborators consumed by
// the connection layer.
//
//   - AuthService verifies "userid;nonce;signature[;role]" credentials and
//     resolves the role a user acts in.
//   - KeyRing resolves HMAC keys for users and peer nodes.
//   - Signer produces credentials for outgoing peer links.
//   - RateLimiterRegistry throttles commands per connection.
package service
