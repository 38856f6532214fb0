/*
Package placeholder implements the directive language embedded in served
pages and templates. Directives are written as {{{...}}} spans and are
resolved at request time against the session identity, the localization
catalog, caller-supplied positional arguments, and the relational content
store.

The package has three layers: Parse turns the raw text inside a span into
a Pattern, a Resolver turns a Pattern into its substitution text (running
role checks, store queries, file reads and markdown conversion as the
directive requires), and the scanner entry points ReplaceAll and
ReplaceAllRecursive drive the whole buffer rewrite.

The directive set is fixed and closed. This is not a general template
engine: there are no loops, no arithmetic, and no user-defined macros.
*/
package placeholder
