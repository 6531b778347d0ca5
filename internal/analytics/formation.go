package analytics

import "github.com/im-sham/ghost-sentry/internal/geo"

// FormationThresholdM is the radius, in metres, used to cluster tracks into
// a formation.
const FormationThresholdM = 500.0

// FormationMinMembers is the minimum cluster size to report a formation.
const FormationMinMembers = 3

// TrackPoint is the narrow input formation detection needs from a track:
// just its entity ID and current position. Malformed entries (discovered by
// the caller, e.g. a track with no geo location) are simply omitted from
// the input slice.
type TrackPoint struct {
	EntityID string
	Point    geo.Point
}

// Formation is a cluster of co-located entities reported at a point in
// time.
type Formation struct {
	Type       string
	MemberCount int
	EntityIDs   []string
	Centroid    geo.Point
}

// DetectFormation clusters tracks within FormationThresholdM of a pivot,
// in input order, reporting every cluster of at least FormationMinMembers.
// Each track appears in at most one formation. Fewer than 3 input tracks
// always returns no formations.
func DetectFormation(tracks []TrackPoint) []Formation {
	if len(tracks) < FormationMinMembers {
		return nil
	}

	radiusDeg := geo.MetersToDegrees(FormationThresholdM)
	used := make([]bool, len(tracks))
	var formations []Formation

	for i, pivot := range tracks {
		if used[i] {
			continue
		}
		memberIdx := []int{i}
		for j := i + 1; j < len(tracks); j++ {
			if used[j] {
				continue
			}
			if geo.Distance(pivot.Point, tracks[j].Point) <= radiusDeg {
				memberIdx = append(memberIdx, j)
			}
		}
		if len(memberIdx) < FormationMinMembers {
			continue
		}

		ids := make([]string, len(memberIdx))
		points := make([]geo.Point, len(memberIdx))
		for k, idx := range memberIdx {
			used[idx] = true
			ids[k] = tracks[idx].EntityID
			points[k] = tracks[idx].Point
		}

		formations = append(formations, Formation{
			Type:        "FORMATION",
			MemberCount: len(ids),
			EntityIDs:   ids,
			Centroid:    geo.Centroid(points),
		})
	}

	return formations
}
