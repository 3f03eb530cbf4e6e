// Package pipeline sequences one lpck run: load the origin workspace,
// substitute cross-references, pack, restore, select and install into the
// target, then clean the archive directory.
package pipeline
