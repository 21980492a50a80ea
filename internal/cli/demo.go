package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Dicklesworthstone/hud/internal/agentfeed"
	"github.com/Dicklesworthstone/hud/internal/state"
)

// runDemoFeeder publishes a scripted stream of agent updates so the
// dashboard can be explored without live agents.
func runDemoFeeder(ctx context.Context, feed *agentfeed.Feed) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	step := 0
	tokens := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		step++
		tokens += 1500 + step*300
		progress := float64((step * 7) % 100)
		now := time.Now()

		feed.Publish(agentfeed.Update{
			AgentID:   "demo-agent",
			Widget:    string(state.KindProjectStatus),
			Status:    agentfeed.StatusComplete,
			Timestamp: now,
			Payload: map[string]any{
				"project":  "demo",
				"phase":    demoPhase(step),
				"progress": progress,
				"healthy":  step%9 != 0,
				"detail":   fmt.Sprintf("step %d of the demo script", step),
			},
		})

		feed.Publish(agentfeed.Update{
			AgentID:   "demo-agent",
			Widget:    string(state.KindMetrics),
			Status:    agentfeed.StatusComplete,
			Timestamp: now,
			Payload: map[string]any{
				"total_tokens": tokens,
				"total_cost":   float64(tokens) * 0.000003,
				"agents": []any{
					map[string]any{"name": "demo-agent", "tokens": tokens, "cost": float64(tokens) * 0.000003},
				},
			},
		})

		feed.Publish(agentfeed.Update{
			AgentID:   "demo-agent",
			Widget:    string(state.KindActivity),
			Status:    agentfeed.StatusComplete,
			Timestamp: now,
			Payload: map[string]any{
				"entries": []any{
					map[string]any{
						"agent_id":  "demo-agent",
						"summary":   fmt.Sprintf("Completed **step %d** of the demo run", step),
						"timestamp": now.UnixMilli(),
					},
				},
			},
		})

		if step%5 == 0 {
			feed.Publish(agentfeed.Update{
				AgentID:   "demo-agent",
				Widget:    string(state.KindAlerts),
				Status:    agentfeed.StatusComplete,
				Timestamp: now,
				Payload: map[string]any{
					"alerts": []any{
						map[string]any{
							"id":          fmt.Sprintf("demo-%d", step),
							"type":        "info",
							"title":       fmt.Sprintf("Milestone %d reached", step/5),
							"message":     "Demo agent hit a scripted milestone",
							"timestamp":   now.UnixMilli(),
							"dismissable": true,
						},
					},
				},
			})
		}
	}
}

func demoPhase(step int) string {
	phases := []string{"planning", "building", "testing", "reviewing"}
	return phases[step%len(phases)]
}
