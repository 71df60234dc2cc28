/*
Package studio provides the data model and SQLite-backed store for the
Herbarium documentation studio.

It manages projects, their node trees (applications containing pages
containing functions), per-project glossaries, and the rich-text documents
attached to function nodes. The package also assembles the template context
JSON consumed by the site templates, and supports JSON-based project export
and import.

All operations are safe for concurrent use through the underlying
database/sql pool.
*/
package studio
