package insight

import (
	"fmt"
	"math"
	"sort"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

// MarketPosition classifies the tracked entity's relative AI visibility.
type MarketPosition string

const (
	PositionLeading     MarketPosition = "leading"
	PositionCompetitive MarketPosition = "competitive"
	PositionEmerging    MarketPosition = "emerging"
	PositionUnknown     MarketPosition = "unknown"
)

// BadgeTop marks the first-ranked competitor.
const BadgeTop = "top"

// TargetSummary is the tracked entity's row in the leaderboard view.
type TargetSummary struct {
	Name         string  `json:"name"`
	Rank         *int    `json:"rank,omitempty"`
	MentionCount int     `json:"mention_count"`
	MentionRate  float64 `json:"mention_rate"` // whole number, 0-100
}

// RankedCompetitor is one deduplicated, ranked competitor row.
type RankedCompetitor struct {
	Rank              int      `json:"rank"`
	Name              string   `json:"name"`
	MentionCount      int      `json:"mention_count"`
	MarketShare       float64  `json:"market_share"` // 0-100
	AvgPosition       *float64 `json:"avg_position,omitempty"`
	AppearsWithTarget int      `json:"appears_with_target"`
	Badge             string   `json:"badge,omitempty"`
}

// Insights summarizes the competitive picture in plain terms.
type Insights struct {
	MarketPosition MarketPosition `json:"market_position"`
	TopCompetitor  string         `json:"top_competitor,omitempty"`
	CompetitiveGap *int           `json:"competitive_gap,omitempty"`
	Recommendation string         `json:"recommendation"`
}

// LeaderboardView is the derived leaderboard. It is recomputed on every read
// from the raw LeaderboardInput and never persisted.
type LeaderboardView struct {
	Target       TargetSummary      `json:"target"`
	Competitors  []RankedCompetitor `json:"competitors"`
	TotalQueries int                `json:"total_queries"`
	Insights     Insights           `json:"insights"`
}

// mergedCompetitor accumulates one canonical-name group during dedup.
type mergedCompetitor struct {
	name              string // first-seen display name
	mentionCount      int
	appearsWithTarget int
	posWeighted       float64 // sum of mention-weighted avg positions
	posWeight         int     // sum of mention counts that carried a position
	posSum            float64 // unweighted fallback when all weights are zero
	posCount          int
}

// ComputeLeaderboard deduplicates, ranks, and annotates the raw competitive
// data. displayName overrides the possibly-stale stored target name.
func ComputeLeaderboard(input model.LeaderboardInput, displayName string) LeaderboardView {
	name := displayName
	if name == "" {
		name = input.Target.Name
	}

	mentionRate := 0.0
	if input.TotalQueries > 0 {
		mentionRate = float64(input.Target.MentionCount) / float64(input.TotalQueries) * 100
	}

	merged := dedupeCompetitors(input.Competitors)

	// Stable sort keeps original relative order on mention-count ties.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].mentionCount > merged[j].mentionCount
	})

	totalMentions := input.Target.MentionCount
	for _, m := range merged {
		totalMentions += m.mentionCount
	}

	ranked := make([]RankedCompetitor, 0, len(merged))
	for i, m := range merged {
		share := 0.0
		if totalMentions > 0 {
			share = float64(m.mentionCount) / float64(totalMentions) * 100
		}
		rc := RankedCompetitor{
			Rank:              i + 1,
			Name:              m.name,
			MentionCount:      m.mentionCount,
			MarketShare:       round1(share),
			AvgPosition:       m.avgPosition(),
			AppearsWithTarget: m.appearsWithTarget,
		}
		if rc.Rank == 1 {
			rc.Badge = BadgeTop
		}
		ranked = append(ranked, rc)
	}

	var top *RankedCompetitor
	if len(ranked) > 0 {
		top = &ranked[0]
	}

	position := classifyPosition(input.TotalQueries, mentionRate, input.Target.MentionCount, top)

	var gap *int
	if top != nil {
		if d := top.MentionCount - input.Target.MentionCount; d > 0 {
			gap = &d
		}
	}

	insights := Insights{
		MarketPosition: position,
		CompetitiveGap: gap,
		Recommendation: recommendationFor(position, top, gap),
	}
	if top != nil {
		insights.TopCompetitor = top.Name
	}

	return LeaderboardView{
		Target: TargetSummary{
			Name:         name,
			Rank:         input.Target.Rank,
			MentionCount: input.Target.MentionCount,
			MentionRate:  math.Round(mentionRate),
		},
		Competitors:  ranked,
		TotalQueries: input.TotalQueries,
		Insights:     insights,
	}
}

// dedupeCompetitors merges raw rows whose canonical names collide. Mention
// counts and co-appearance counts sum; avg position becomes the
// mention-weighted average of the group; the first-seen display name wins.
func dedupeCompetitors(raw []model.CompetitorObservation) []mergedCompetitor {
	index := make(map[string]int, len(raw))
	var merged []mergedCompetitor

	for _, c := range raw {
		key := CanonicalName(c.Name)
		i, ok := index[key]
		if !ok {
			i = len(merged)
			index[key] = i
			merged = append(merged, mergedCompetitor{name: c.Name})
		}
		m := &merged[i]
		m.mentionCount += c.MentionCount
		m.appearsWithTarget += c.AppearsWithTarget
		if c.AvgPosition != nil {
			m.posWeighted += *c.AvgPosition * float64(c.MentionCount)
			m.posWeight += c.MentionCount
			m.posSum += *c.AvgPosition
			m.posCount++
		}
	}

	return merged
}

// avgPosition resolves the group's average position, rounded to 1 decimal.
// Rows with zero mentions fall back to an unweighted mean.
func (m *mergedCompetitor) avgPosition() *float64 {
	if m.posCount == 0 {
		return nil
	}
	var pos float64
	if m.posWeight > 0 {
		pos = m.posWeighted / float64(m.posWeight)
	} else {
		pos = m.posSum / float64(m.posCount)
	}
	pos = round1(pos)
	return &pos
}

// classifyPosition implements the market-position decision table. Order
// matters: no-data first, then leading, competitive, emerging.
func classifyPosition(totalQueries int, mentionRate float64, targetMentions int, top *RankedCompetitor) MarketPosition {
	switch {
	case totalQueries == 0:
		return PositionUnknown
	case mentionRate >= 60, top == nil, targetMentions > top.MentionCount:
		return PositionLeading
	case mentionRate >= 30:
		return PositionCompetitive
	case mentionRate > 0:
		return PositionEmerging
	default:
		return PositionUnknown
	}
}

func recommendationFor(position MarketPosition, top *RankedCompetitor, gap *int) string {
	switch position {
	case PositionLeading:
		return "You lead AI visibility in your market. Keep your source content fresh to defend the position."
	case PositionCompetitive:
		if top != nil && gap != nil {
			return fmt.Sprintf("You trail %s by %d mentions. Target the prompt categories where they appear without you.", top.Name, *gap)
		}
		return "You are competitive but not leading. Target the prompt categories where competitors appear without you."
	case PositionEmerging:
		return "AI models mention you occasionally. Publish authoritative content about your services to grow visibility."
	default:
		return "Not enough query data yet. Run a visibility analysis to establish a baseline."
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
