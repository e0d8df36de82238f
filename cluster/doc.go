// Package cluster defines cluster membership records and the store
// contract used to discover members.
//
// # Member Entity
//
// Each running distask member registers itself as a [Member] with:
//   - its address, the name it is known by in the view
//   - the WebSocket URL other members dial to reach it
//   - its execution thread count
//   - a state: [MemberActive] or [MemberLeaving]
//
// Members send periodic heartbeats. A member whose heartbeat is older than
// the configured threshold is reaped and dropped from every view.
//
// The store is a discovery aid, not a source of truth: a member is in the
// view only while a transport connection to it is up.
package cluster
