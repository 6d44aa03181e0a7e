// Package dedupe provides a bounded TTL cache used to replay the outcome of
// a request that is retried with the same request id.
package dedupe
