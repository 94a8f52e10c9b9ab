// Package records populates runtime-typed content records from untyped
// field maps.
//
// A Builder resolves the content type of an input map through a
// SchemaCatalog, decodes every declared field with a fieldvalue.Codec,
// resolves host, folder, asset and relationship references through the
// reference stores, and returns a Record ready for storage. Host and folder
// misses are logged and tolerated; asset references that cannot be resolved
// fail the call.
//
// Identifier Patching
//
// When the input carries an identifier, the latest stored revision for that
// identifier and language becomes the base of the new record and the input
// map is applied over it as a patch. The inode is cleared so the write path
// stores a new revision.
//
// Relationships
//
// A relationship key mapped to an empty query detaches every related record.
// A key that is absent leaves the stored relationships untouched; in that
// case Record.Relationships is nil.
package records
