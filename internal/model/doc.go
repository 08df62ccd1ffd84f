// Package model holds the types shared by every rollbook store: records,
// payments, photo attachments and credentials, plus the error taxonomy the
// boundary service converts into failure results.
//
// # Error codes
//
//   - VALIDATION: a required field is missing or a value is out of range
//   - AUTH: the username/password pair did not verify (always "invalid credentials")
//   - PERSISTENCE: the database or the photo tree could not be read or written
//   - NOT_FOUND: a lookup by id matched nothing
//
// Use the IsX helpers rather than comparing codes directly; they see through
// wrapping.
package model
