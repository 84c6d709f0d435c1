// Package group maintains broadcast group membership for the process and
// fans events out to members. Cross-process delivery is delegated to a
// Transport: in-process for a single server, Redis pub/sub for several.
package group
