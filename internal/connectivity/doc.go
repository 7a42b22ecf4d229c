// Package connectivity is the single source of truth for "can we talk
// to the network and to the backend right now".
//
// The monitor owns the connectivity state; every other component reads
// it before attempting remote work and nothing else writes it. State
// starts optimistic (reachable until proven otherwise) so startup and
// the online transition never block on a slow probe — a deliberate
// tradeoff: a truly-down backend is masked until the first probe cycle
// corrects it.
package connectivity
