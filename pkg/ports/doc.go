/*
Package ports defines the driven ports (interfaces) of the session store.

These interfaces decouple the coordinator from concrete key-value stores and
lock services, so the same reconciliation logic runs over Redis, memory or
any other backend.

# Key Interfaces

  - Backend: Key-value persistence of session records (get/set/set-with-TTL/delete/exists).
  - DistributedLocker: Provides distributed locking for coordinating replicas.
*/
package ports
