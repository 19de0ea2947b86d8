// Package pipeline runs a localization as a sequence of steps: prepare the
// mirror, walk the source tree, and optionally inspect the localized images.
//
// Run wires the fetcher, content store, CSS resolver, HTML processor and
// walker for one source tree, executes the steps, and always returns a
// RunReport with a terminal status. BatchRunner runs several source trees
// concurrently using errgroup.
package pipeline
