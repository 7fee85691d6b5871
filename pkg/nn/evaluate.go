package nn

import "slices"

// DefaultMatchIOU is the overlap at which a detection counts as finding a ground truth object
const DefaultMatchIOU = 0.5

// MatchStats compares detections against ground truth
type MatchStats struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	FalseNegatives int `json:"falseNegatives"`
}

func (m *MatchStats) Add(b MatchStats) {
	m.TruePositives += b.TruePositives
	m.FalsePositives += b.FalsePositives
	m.FalseNegatives += b.FalseNegatives
}

// Precision is the fraction of detections that are correct. Zero if there were no detections.
func (m MatchStats) Precision() float32 {
	n := m.TruePositives + m.FalsePositives
	if n == 0 {
		return 0
	}
	return float32(m.TruePositives) / float32(n)
}

// Recall is the fraction of ground truth objects that were found. Zero if there was no ground truth.
func (m MatchStats) Recall() float32 {
	n := m.TruePositives + m.FalseNegatives
	if n == 0 {
		return 0
	}
	return float32(m.TruePositives) / float32(n)
}

// Match pairs every detection with at most one ground truth object of the same class.
// Detections are considered from most to least confident, and each one takes the
// unclaimed ground truth box it overlaps most, if that overlap is at least minIOU.
func Match(truth, detected []ObjectDetection, minIOU float32) MatchStats {
	order := make([]int, len(detected))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ca, cb := detected[a].Confidence, detected[b].Confidence
		if ca > cb {
			return -1
		} else if ca < cb {
			return 1
		}
		return 0
	})

	claimed := make([]bool, len(truth))
	stats := MatchStats{}
	for _, i := range order {
		det := detected[i]
		best := -1
		bestIOU := minIOU
		for j, gt := range truth {
			if claimed[j] || gt.Class != det.Class {
				continue
			}
			if iou := det.Box.IOU(gt.Box); iou >= bestIOU {
				best = j
				bestIOU = iou
			}
		}
		if best >= 0 {
			claimed[best] = true
			stats.TruePositives++
		} else {
			stats.FalsePositives++
		}
	}
	for _, c := range claimed {
		if !c {
			stats.FalseNegatives++
		}
	}
	return stats
}
