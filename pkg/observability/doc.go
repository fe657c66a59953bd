/*
Package observability provides Prometheus instrumentation for the session store.

Metrics counts session lifecycle events (creation, renewal, drop), id
collisions, merge outcomes, backend failures and lock wait time. A nil
*Metrics is valid and records nothing, so components can call it
unconditionally.
*/
package observability
