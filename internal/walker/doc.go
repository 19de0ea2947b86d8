// Package walker traverses the source tree and fills the mirror tree.
//
// Files ending in .html are handed to an HTML processor, which writes them
// only when it rewrote something. Every other regular file is copied with
// its permissions and modification time.
package walker
