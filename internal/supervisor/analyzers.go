package supervisor

import (
	"sort"
	"strings"
	"time"

	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/tasks"
)

// AgentSnapshot is the supervisor's per-tick view of one agent, fed by
// the Coordination Fabric's monitoring stream and the Resource Monitor.
type AgentSnapshot struct {
	ID            ids.AgentId
	Role          string
	Capabilities  []string
	IdleSince     time.Time // zero value means currently busy
	InFlightTasks int
}

// CompletedTaskQuality pairs a just-finished task with its Quality
// Evaluator verdict, the Remediation analyzer's input.
type CompletedTaskQuality struct {
	Task       *tasks.Task
	Score      float64
	Issues     []tasks.QualityIssue
	CompletedAt time.Time
}

// Snapshot is everything one supervisor tick reasons over.
type Snapshot struct {
	Now              time.Time
	Agents           []AgentSnapshot
	Queue            *tasks.Queue
	RecentCompletions []CompletedTaskQuality
	// QueueDepthHistory holds the most recent standard-tick queue depth
	// samples, oldest first, for the Capacity analyzer's trend check.
	QueueDepthHistory []int
}

// analyzeIdle implements analyzer 1: agents idle past threshold.
func analyzeIdle(snap Snapshot, th Thresholds) []Decision {
	var out []Decision
	for _, a := range snap.Agents {
		if a.IdleSince.IsZero() {
			continue
		}
		if snap.Now.Sub(a.IdleSince) >= th.IdleThreshold {
			out = append(out, Decision{
				Kind:    DecisionSuspendAgent,
				Risk:    RiskLow,
				At:      snap.Now,
				AgentID: a.ID,
				Reason:  "agent idle beyond threshold",
			})
		}
	}
	return out
}

// analyzeBottleneck implements analyzer 2: any single agent holding
// more than bottleneck_ratio of in-flight work.
func analyzeBottleneck(snap Snapshot, th Thresholds) []Decision {
	total := 0
	for _, a := range snap.Agents {
		total += a.InFlightTasks
	}
	if total == 0 {
		return nil
	}
	var out []Decision
	for _, a := range snap.Agents {
		ratio := float64(a.InFlightTasks) / float64(total)
		if ratio > th.BottleneckRatio {
			out = append(out, Decision{
				Kind:    DecisionRebalance,
				Risk:    RiskMedium,
				At:      snap.Now,
				AgentID: a.ID,
				Reason:  "agent holds a disproportionate share of in-flight work",
			})
		}
	}
	return out
}

// analyzeDependency implements analyzer 3: tasks whose dependencies
// are complete but which remain unclaimed beyond stale_threshold.
// Agent selection uses role-to-capability matching against Task.type
// plus a keyword match over description/details; ties are broken by
// fewest in-flight tasks, then most recently idle.
func analyzeDependency(snap Snapshot, th Thresholds) []Decision {
	if snap.Queue == nil {
		return nil
	}
	cutoff := snap.Now.Add(-th.StaleThreshold)
	stale := snap.Queue.StaleUnclaimed(cutoff)
	var out []Decision
	for _, task := range stale {
		candidate, ok := selectCandidate(snap.Agents, task)
		if !ok {
			continue
		}
		out = append(out, Decision{
			Kind:             DecisionDispatch,
			Risk:             RiskLow,
			At:               snap.Now,
			TaskID:           task.ID,
			CandidateAgentID: candidate,
			Reason:           "dependencies satisfied but task unclaimed past stale threshold",
		})
	}
	return out
}

func selectCandidate(agents []AgentSnapshot, task *tasks.Task) (string, bool) {
	var candidates []AgentSnapshot
	for _, a := range agents {
		if roleMatches(a, task) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].InFlightTasks != candidates[j].InFlightTasks {
			return candidates[i].InFlightTasks < candidates[j].InFlightTasks
		}
		// Most recently idle first: later IdleSince wins.
		return candidates[i].IdleSince.After(candidates[j].IdleSince)
	})
	return candidates[0].ID.String(), true
}

func roleMatches(a AgentSnapshot, task *tasks.Task) bool {
	typeStr := strings.ToLower(string(task.Type))
	for _, cap := range a.Capabilities {
		if strings.Contains(strings.ToLower(cap), typeStr) {
			return true
		}
	}
	haystack := strings.ToLower(task.Description + " " + task.Details)
	for _, cap := range a.Capabilities {
		if strings.Contains(haystack, strings.ToLower(cap)) {
			return true
		}
	}
	return false
}

// analyzeRemediation implements analyzer 4: recently completed tasks
// whose quality score is below the threshold.
func analyzeRemediation(snap Snapshot, th Thresholds) []Decision {
	var out []Decision
	for _, c := range snap.RecentCompletions {
		if c.Score >= th.QualityThreshold {
			continue
		}
		out = append(out, Decision{
			Kind:          DecisionCreateRemediation,
			Risk:          RiskMedium,
			At:            snap.Now,
			ParentTaskID:  c.Task.ID,
			QualityIssues: c.Issues,
			Reason:        "completed task scored below quality threshold",
		})
	}
	return out
}

// analyzeCapacity implements analyzer 5: queue depth growing faster
// than completion rate for >= capacity_tick_count consecutive
// standard ticks.
func analyzeCapacity(snap Snapshot, th Thresholds) []Decision {
	n := th.CapacityTickCount
	if n <= 0 {
		n = 3
	}
	hist := snap.QueueDepthHistory
	if len(hist) < n+1 {
		return nil
	}
	recent := hist[len(hist)-(n+1):]
	growing := true
	for i := 1; i < len(recent); i++ {
		if recent[i] <= recent[i-1] {
			growing = false
			break
		}
	}
	if !growing {
		return nil
	}
	return []Decision{{
		Kind:   DecisionProposeAgent,
		Risk:   RiskHigh,
		At:     snap.Now,
		Role:   "general",
		Reason: "queue depth growing for several consecutive ticks",
	}}
}

// RunAnalyzers evaluates the full pipeline in spec.md section 4.7's
// stated order and returns every Decision produced.
func RunAnalyzers(snap Snapshot, th Thresholds) []Decision {
	var out []Decision
	out = append(out, analyzeIdle(snap, th)...)
	out = append(out, analyzeBottleneck(snap, th)...)
	out = append(out, analyzeDependency(snap, th)...)
	out = append(out, analyzeRemediation(snap, th)...)
	out = append(out, analyzeCapacity(snap, th)...)
	return out
}
