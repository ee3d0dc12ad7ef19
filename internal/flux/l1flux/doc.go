// Package l1flux owns Layer 1 (Flux) of the recovery data model.
//
// Responsibilities: holding captured flux-transition timings per revolution,
// decoding SCP-style 16-bit delta streams into cumulative time, revolution
// timing statistics, and loading JSON captures handed over by the external
// capture collaborator. Key types: Revolution, Track, Capture.
//
// Dependency rule: L1 has no inward dependencies on higher layers.
package l1flux
