// Package assist wraps the third-party AI services: text generation
// for chat replies, text-to-speech and translation.
//
// Every client is rate limited and treats the remote service as an
// opaque fallible collaborator. Failures come back as plain errors so
// the callers' retry and session handling apply uniformly.
package assist
