// Package preflight provides readiness checks for the filesystem paths and
// record store that pressline depends on.
//
// The daemon runs RunAll before serving and refuses to start when a check
// fails. The CLI "queue check" and "config validate" commands reuse the
// individual checks to print a health table.
package preflight
