// Package session owns the observable auth state and the recovery path
// for expired sessions.
//
// State is the single place the "is the user signed in" answer lives;
// it mutates only through the defined transitions and notifies
// subscribers on every change. Guard classifies failed operations
// against the known auth-expiry signatures and, on a match, performs
// the forced sign-out exactly once per expiry event, however many
// concurrent calls report the same failure.
package session
