// Package collection models the request hierarchy of a restbench workspace.
//
// A collection is a tree of groups and items:
//   - Groups carry inheritable auth, pre/post scripts, headers and variables
//   - Items are leaf request definitions
//
// The tree is stored as an arena addressed by NodeID. Consumers that only
// need inheritance information read an ancestor chain (outer to inner) and
// never hold parent pointers.
package collection
