// Package password implements password hashing and scheme-tagged verification.
//
// # Output format
//
// New hashes are scrypt, encoded in PHC string format:
//
//	$scrypt$ln=<log2 N>,r=<block size>,p=<parallelism>$<salt>$<hash>
//
// [Hasher.Verify] also accepts bcrypt and bare SHA-256 hex material. A valid
// match on either legacy scheme, or on scrypt material with weaker parameters,
// sets [Result.NeedsMigration] so the caller can rewrite the credential.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Storing the upgraded hash
// is the Engine's job.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other meowauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
