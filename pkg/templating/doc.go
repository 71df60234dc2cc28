/*
Package templating provides the filesystem-based template engine behind the
rendered documentation site. Templates are standard html/template files loaded
from a data directory, with partials shared across pages.

It includes a library of custom template functions for turning stored editor
documents into safe HTML, deriving excerpts and anchor ids, and the usual
arithmetic and logic helpers. Rendering is bounded by configurable safety
limits so a malformed document cannot stall a page. Templates can be
hot-reloaded from the filesystem, either explicitly via Refresh or
automatically through the directory watcher.

For a complete list of template functions and usage examples, see the README.md file.
*/
package templating
