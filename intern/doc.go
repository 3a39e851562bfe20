// Package intern deduplicates strings and stack traces into stable
// 64-bit identifiers.
//
// Both tables are fixed-capacity open-addressed hash indexes carved from
// the runtime's arena. They store a 64-bit xxhash fingerprint of the
// content rather than the content itself: repeated submissions are
// recognized by fingerprint equality, so the raw bytes travel on the
// wire at most once. The tables never grow; when a table fills, new
// content is dropped and reported, existing entries stay valid.
//
// StringTable keys on content and assigns dense identifiers itself.
// StackTable keys on a caller-asserted identifier and only judges
// whether that identifier is new, repeated, or reused with different
// content.
//
// Entries are spread across fixed shards, each with its own mutex, so
// concurrent interning from allocation hot paths does not serialize on
// one lock.
package intern
