// Package users manages the operator directory: registration with bcrypt
// password hashes, credential checks, and the identifier-to-name joins used
// when jobs are read back.
package users
