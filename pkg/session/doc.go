/*
Package session implements the session store coordinator.

The Coordinator owns the session lifecycle on top of a ports.Backend:
fetch-or-create with collision-checked id generation, persistence that merges
a request's changes against whatever concurrent requests stored meanwhile,
renewal, and destruction. Store access is serialized by scoped locks that are
held only for the backend round-trips of one call, never across the
application code that runs between GetSession and SetSession.

Backend failures never reach the caller: a failed read degrades to an
ephemeral empty session and a failed write is logged and dropped.
*/
package session
