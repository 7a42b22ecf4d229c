// Package backend is the client for the hosted backend-as-a-service.
//
// It covers the three contracts the rest of havend depends on: the REST
// table API (CRUD over named resources, row ownership enforced server
// side), the token auth API, and the realtime change feed. Errors from
// the wire are preserved verbatim in APIError so downstream layers can
// classify them (retryability, auth expiry) without losing content.
//
// The package owns no policy: no retries, no reachability gating. Those
// belong to the retry and connectivity packages composed above it.
package backend
