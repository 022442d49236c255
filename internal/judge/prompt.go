package judge

import (
	"fmt"
	"strings"
)

const SystemPrompt = `You are an impartial judge for a Wikipedia speedrun race. Two agents race from a starting Wikipedia article to a target article by clicking links only.

You will be given the task and each agent's final URL and click count.

Rules:
- If an agent's final URL is the target article, that agent wins.
- If both reached it, the one with fewer clicks wins.
- If neither reached it, judge who made better progress toward the target from the topic of their final page.
- Only declare a draw when both outcomes are clearly equivalent.

Respond with ONLY valid JSON:
{"winner": "agent1" | "agent2" | "draw", "reasoning": "<1-3 sentences>"}`

// UserMessage renders the race summary sent with SystemPrompt.
func UserMessage(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\nTarget article: %s\n\n", in.Task, in.Target)
	writeContestant(&b, 1, in.A)
	b.WriteString("\n")
	writeContestant(&b, 2, in.B)
	b.WriteString("\nWho won?")
	return b.String()
}

func writeContestant(b *strings.Builder, n int, c Contestant) {
	loc := strings.TrimSpace(c.FinalLocation)
	if loc == "" {
		loc = "unknown"
	}
	fmt.Fprintf(b, "Agent %d (%s):\n- Final URL: %s\n- Clicks: %d\n", n, name(c), loc, c.Clicks)
}
