// Package model defines the data shared by the localizer packages.
//
// Category classifies localized assets and decides their place under the
// mirror tree. Artifact is the transient result of fetching one
// reference. RunReport collects the outcome of a run and is rendered by
// the report writers and stored by the history database.
//
// Keeping these types in one leaf package lets fetch, store, css,
// htmldoc, walker and pipeline share them without import cycles.
package model
