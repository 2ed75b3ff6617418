// Package state groups the archiver.StateStore backends. The file backend is the default;
// postgres and redis let several hosts share one processed set.
package state
