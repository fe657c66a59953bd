/*
Package domain contains the core session models and the reconciliation logic
shared by every store.

It defines what a session is (a Record of string keys to arbitrary values),
how a request keeps the baseline it read (Session pairs the live values with
an immutable Snapshot), and how concurrent writers are reconciled (Diff, Delta
and Merge). This package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - Record: The persisted mapping for one client.
  - Session: The in-flight view of a Record plus the Snapshot taken when it was read.
  - Delta: The per-key changes a request made relative to its Snapshot.
  - Options: Per-request flags (renew, drop, defer, expiry, concurrency).
*/
package domain
