package l2bits

// Stats are the running counters of one synchronization run.
type Stats struct {
	Transitions      int   // deltas consumed, spikes included
	WeakBitsDetected int   // transitions whose innovation exceeded the gate
	SpikeRejections  int   // deltas discarded as spikes
	Gaps             int   // runs longer than MaxRunCells emitted without update
	DriftResets      []int // bit offsets where the loop restarted after SyncDrift
}

// BitCellStream is the synchronizer output: one entry per bit cell, with
// the cell's confidence and the cell-time estimate in force when the cell
// was emitted. It is owned by the decode call that produced it.
type BitCellStream struct {
	Bits       []uint8
	Confidence []float64
	CellNs     []float64

	// Weak lists bit offsets of transitions flagged by the innovation gate.
	Weak []int

	Stats Stats
}

// NewBitCellStream allocates a stream with room for n cells.
func NewBitCellStream(n int) *BitCellStream {
	return &BitCellStream{
		Bits:       make([]uint8, 0, n),
		Confidence: make([]float64, 0, n),
		CellNs:     make([]float64, 0, n),
	}
}

// Len is the number of cells.
func (s *BitCellStream) Len() int { return len(s.Bits) }

// Append adds one cell.
func (s *BitCellStream) Append(bit uint8, confidence, cellNs float64) {
	s.Bits = append(s.Bits, bit)
	s.Confidence = append(s.Confidence, confidence)
	s.CellNs = append(s.CellNs, cellNs)
}

// MeanConfidence averages confidence over [start, end), clamped to the stream.
// An empty range has confidence 0.
func (s *BitCellStream) MeanConfidence(start, end int) float64 {
	start, end = s.clamp(start, end)
	if end <= start {
		return 0
	}
	var sum float64
	for _, c := range s.Confidence[start:end] {
		sum += c
	}
	return sum / float64(end-start)
}

// MeanCellNs averages the cell-time estimate over [start, end).
func (s *BitCellStream) MeanCellNs(start, end int) float64 {
	start, end = s.clamp(start, end)
	if end <= start {
		return 0
	}
	var sum float64
	for _, c := range s.CellNs[start:end] {
		sum += c
	}
	return sum / float64(end-start)
}

// WeakIn counts flagged transitions inside [start, end).
func (s *BitCellStream) WeakIn(start, end int) int {
	n := 0
	for _, w := range s.Weak {
		if w >= start && w < end {
			n++
		}
	}
	return n
}

func (s *BitCellStream) clamp(start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(s.Bits) {
		end = len(s.Bits)
	}
	return start, end
}
