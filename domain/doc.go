// Package domain contains the core concepts of the group chat system:
// the Group entity with its membership, admin, mute and waiting-room
// state, and the closed set of routing intents. No network, framing or
// presentation logic belongs here.
package domain
