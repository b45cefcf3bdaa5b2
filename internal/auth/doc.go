// Package auth hashes passwords and issues the bearer tokens that authenticate API requests.
//
// Tokens are HS256 JWTs whose subject is the user ID; the role, email and name travel as
// claims so middleware can authorize a request without a database round trip.
package auth
