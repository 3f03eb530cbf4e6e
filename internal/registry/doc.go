// Package registry holds the packages of one workspace run and performs the
// reversible rewrite of their internal cross-references.
//
// A Registry is loaded once. Apply points every dependency on another known
// package at that package's archive; Revert writes the load-time snapshots
// back. WithSubstitution couples the two so the rewrite is undone on every
// exit path.
package registry
