package opt

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"tourroute/internal/model"
)

// maxAlternatives caps the lighter itineraries offered next to the main route.
const maxAlternatives = 3

// Assemble expands a winning sequence into an OptimizedRoute. Quality and
// metadata are filled in by the caller.
func Assemble(p *Problem, seq []int) model.OptimizedRoute {
	st := p.Evaluate(seq)
	route := model.OptimizedRoute{
		ID:                   uuid.NewString(),
		Waypoints:            make([]model.Waypoint, 0, len(seq)),
		TotalDuration:        round1(st.Duration()),
		TotalDistance:        round1(st.Distance),
		EstimatedWalkingTime: round1(st.TravelMinutes),
		Route: model.RouteDetail{
			Coordinates:  [][2]float64{{p.Start.Lng, p.Start.Lat}},
			Instructions: make([]string, 0, len(seq)),
			Segments:     make([]model.Segment, 0, len(seq)),
		},
		Alternatives: alternatives(p, seq, st),
	}

	prev, from := -1, "start"
	rank := 0
	for _, idx := range seq {
		w := p.Waypoints[idx]
		meters, minutes := p.Leg(prev, idx)
		route.Waypoints = append(route.Waypoints, w)
		route.Route.Coordinates = append(route.Route.Coordinates, [2]float64{w.Location.Lng, w.Location.Lat})
		route.Route.Segments = append(route.Route.Segments, model.Segment{
			From:     from,
			To:       w.ID,
			Distance: round1(meters),
			Duration: round1(minutes),
			Mode:     "walking",
		})
		route.Route.Instructions = append(route.Route.Instructions, instruction(p, prev, idx, meters, minutes))
		rank += w.Difficulty.Rank()
		prev, from = idx, w.ID
	}
	if len(seq) > 0 {
		route.AverageDifficulty = round1(float64(rank) / float64(len(seq)))
	}
	return route
}

func instruction(p *Problem, prev, idx int, meters, minutes float64) string {
	w := p.Waypoints[idx]
	if meters < 1 {
		if prev < 0 {
			return fmt.Sprintf("Begin at %s", w.Name)
		}
		return fmt.Sprintf("%s is right here", w.Name)
	}
	var from model.GeoPoint
	if prev < 0 {
		from = p.Start
	} else {
		from = p.Waypoints[prev].Location
	}
	heading := Compass(Bearing(from, w.Location))
	return fmt.Sprintf("Walk %.0f m %s to %s (about %.0f min)", meters, heading, w.Name, math.Max(1, math.Round(minutes)))
}

// alternatives drops the lowest-value optional stop, one at a time and
// cumulatively, and reports what each shorter itinerary saves and loses.
func alternatives(p *Problem, seq []int, base Stats) []model.Alternative {
	out := []model.Alternative{}
	cur := append([]int(nil), seq...)
	var skipped []string
	for len(out) < maxAlternatives {
		pos := -1
		for i, idx := range cur {
			if idx == p.Head || idx == p.Tail || p.Waypoints[idx].Priority == model.PriorityEssential {
				continue
			}
			if pos < 0 || p.value[idx] < p.value[cur[pos]] {
				pos = i
			}
		}
		if pos < 0 {
			break
		}
		w := p.Waypoints[cur[pos]]
		cur = append(cur[:pos:pos], cur[pos+1:]...)
		skipped = append(skipped, w.Name)
		st := p.Evaluate(cur)

		timeSaved := round1(base.Duration() - st.Duration())
		distSaved := round1(base.Distance - st.Distance)
		benefits := []string{fmt.Sprintf("Saves about %.0f minutes", timeSaved)}
		if distSaved >= 1 {
			benefits = append(benefits, fmt.Sprintf("%.0f m less walking", distSaved))
		}
		if w.Difficulty == model.DifficultyChallenging {
			benefits = append(benefits, "Skips a challenging stop")
		}
		if lvl, ok := crowdFor(w, p.Context); ok && lvl == model.CrowdHigh {
			benefits = append(benefits, "Avoids a crowded stop")
		}
		tradeoff := "Misses " + w.Name
		if len(w.Tags) > 0 {
			tradeoff += " (" + strings.Join(w.Tags, ", ") + ")"
		}
		out = append(out, model.Alternative{
			Reason:        fmt.Sprintf("Skip %s to save %.0f minutes", strings.Join(skipped, " and "), timeSaved),
			Waypoints:     ids(p, cur),
			TimeSaved:     timeSaved,
			DistanceSaved: distSaved,
			Benefits:      benefits,
			Tradeoff:      tradeoff,
		})
	}
	return out
}

func ids(p *Problem, seq []int) []string {
	out := make([]string, len(seq))
	for i, idx := range seq {
		out[i] = p.Waypoints[idx].ID
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
