// Package fusion combines a textual match score with an optional face distance
// into the final confidence.
//
// Confidence ceilings unlock only with stronger evidence: text alone tops out at
// TextOnlyCap, text plus a weak face signal at WeakFaceCap, and only a strong face
// match reaches 1.
package fusion

// Policy constants.
const (
	StrongFace  = 0.8  // face confidence above this is a biometric confirmation
	TextOnlyCap = 0.8  // ceiling without a face signal
	WeakFaceCap = 0.99 // ceiling with a face signal below StrongFace

	textWeight = 0.8
	faceWeight = 0.2
)

// FaceConfidence converts a face distance into an agreement signal in [0, 1].
func FaceConfidence(distance float64) float64 {
	return max(0, 1-distance)
}

// Fuse returns the real confidence for a textual score and an optional face
// distance. A nil distance means no comparable face was found.
func Fuse(textual float64, distance *float64) float64 {
	if distance == nil {
		return min(textual, TextOnlyCap)
	}
	face := FaceConfidence(*distance)
	if face > StrongFace {
		return 1
	}
	return min(textWeight*textual+faceWeight*face, WeakFaceCap)
}

// Outcome classifies a face distance for metrics and logs: "match", "weak" or "none".
func Outcome(distance *float64) string {
	switch {
	case distance == nil:
		return "none"
	case FaceConfidence(*distance) > StrongFace:
		return "match"
	default:
		return "weak"
	}
}
