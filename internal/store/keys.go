package store

import "strings"

const (
	keyQueue     = "arena:queue"
	keyDeadlines = "arena:deadlines"
)

func keyParticipant(id string) string { return "arena:participant:" + strings.TrimSpace(id) }
func keyAPIKey(hash string) string    { return "arena:apikey:" + strings.TrimSpace(hash) }
func keyMatch(id string) string       { return "arena:match:" + strings.TrimSpace(id) }
func keyActive(pid string) string     { return "arena:active:" + strings.TrimSpace(pid) }
