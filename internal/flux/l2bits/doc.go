// Package l2bits owns Layer 2 (Bit cells) of the recovery data model.
//
// Responsibilities: turning flux deltas into a quantized bit-cell stream
// with a Kalman-filter PLL that tracks cell time and drift, rejecting spike
// transitions, flagging weak bit positions, and holding the per-format PLL
// presets as swappable data. Key types: Synchronizer, BitCellStream, Preset.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2bits
