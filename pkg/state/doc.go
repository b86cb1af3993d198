// Package state detects the InstallState of this host from the completion
// marker, the presence of a running installer and the run history.
package state
