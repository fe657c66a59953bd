// Package redis stores sessions in Redis through go-redis.
//
// Backend implements ports.Backend with namespaced keys and native key
// expiry, Locker implements ports.DistributedLocker with SET NX PX and a
// compare-and-delete release, and Connect/Healthcheck cover connection
// setup with retries and liveness probes.
package redis
