/*
Package divergence records the history of every versioned field of every entity
and answers "what was this field as of revision R on branch B".

Each field of an entity has two kinds of head chains:

  - the OriginalHead, recorded on the branch the entity was first written on;
  - an AlternateHead per branch that has overridden the field.

A Divergence record (ModuleDivergence, SymbolDivergence, ArticleDivergence and
the overlay record) aggregates the optional AlternateHead of each of its fields
for one entity on one branch. A branch that never writes a field pays nothing
for it: reads walk the branch lineage and fall back to the parent's history as
of the fork point. Writing a field that the parent also has records exactly one
override entry; the parent's history is shared and untouched.

Reads

	value, ok := divergence.Read(symbols, s, divergence.SymbolDocumentation, lineage)

ok is false when the field is unset as of the lineage's leaf version, which is
distinct from a recorded nil value.

Erosion

Rolling back a branch is a two-step operation. Table.Erode consults the
per-branch write journal and returns only the keys written after the target
revision; Table.Revert then asks each touched record to Revert itself. Records
whose alternate chains all become empty are dropped from the table.
*/
package divergence
