// Package transport implements the NATS-backed alternative to
// internal/fabric's in-process Bus (spec.md section 4.3's "Coordination
// Fabric" generalized to span processes), grounded on the teacher's
// internal/nats package (client.go's reconnecting Client, server.go's
// EmbeddedServer, messages.go's subject-pattern vocabulary).
package transport

import "fmt"

// Subject patterns. Use fmt.Sprintf(SubjectAgentPrimary, agentID) etc.
// to build a concrete subject, mirroring the teacher's
// SubjectAgentHeartbeat convention.
const (
	SubjectAgentPrimary   = "agentcore.agent.%s.primary"
	SubjectAgentSecondary = "agentcore.agent.%s.secondary"
	SubjectBroadcast      = "agentcore.broadcast"
	SubjectMonitoring     = "agentcore.monitoring"
	SubjectTeam           = "agentcore.team.%s"
)

func agentPrimarySubject(agentID string) string   { return fmt.Sprintf(SubjectAgentPrimary, agentID) }
func agentSecondarySubject(agentID string) string { return fmt.Sprintf(SubjectAgentSecondary, agentID) }
func teamSubject(teamID string) string            { return fmt.Sprintf(SubjectTeam, teamID) }
