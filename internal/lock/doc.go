// Package lock handles parsing and writing of lpck.lock.yaml files.
// A lock file sits next to kept archives and records which origin, commit
// and package versions they were packed from.
package lock
