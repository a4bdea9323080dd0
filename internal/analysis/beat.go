package analysis

// BeatDetector flags onsets from jumps in frame energy.
type BeatDetector struct {
	threshold      float64 // Minimum RMS for a beat
	minEnergyRatio float64 // Minimum increase over the previous frame
	cooldown       int     // Frames to ignore after a beat
	lastEnergy     float64
	hold           int
}

// NewBeatDetector returns a detector; cooldownFrames suppresses double
// triggers on one kick.
func NewBeatDetector(threshold, minEnergyRatio float64, cooldownFrames int) *BeatDetector {
	return &BeatDetector{
		threshold:      threshold,
		minEnergyRatio: minEnergyRatio,
		cooldown:       cooldownFrames,
	}
}

// Process consumes one frame's energy and reports whether it is a beat.
func (kd *BeatDetector) Process(energy float64) bool {
	beat := false
	if kd.hold > 0 {
		kd.hold--
	} else if energy > kd.threshold && (kd.lastEnergy == 0 || energy/kd.lastEnergy > kd.minEnergyRatio) {
		beat = true
		kd.hold = kd.cooldown
	}
	kd.lastEnergy = energy
	return beat
}

// Reset forgets history, used after a source switch.
func (kd *BeatDetector) Reset() {
	kd.lastEnergy = 0
	kd.hold = 0
}
