package executor

import "strings"

// replyGroup is one keyword group in the built-in fallback reply table
// (spec.md §6: "a deterministic built-in reply table keyed by keyword
// groups: greeting, identity, time-of-day, thanks, farewell, presence
// probe, default").
type replyGroup struct {
	keywords []string
	reply    string
}

var replyTable = []replyGroup{
	{keywords: []string{"hello", "hi", "hey", "yo"}, reply: "Hello! How can I help you today?"},
	{keywords: []string{"who are you", "what are you"}, reply: "I'm an automated task orchestrator — tell me what you need done."},
	{keywords: []string{"good morning"}, reply: "Good morning! What would you like to get done?"},
	{keywords: []string{"good afternoon"}, reply: "Good afternoon! What can I help with?"},
	{keywords: []string{"good evening"}, reply: "Good evening! What can I help with?"},
	{keywords: []string{"thank", "thanks", "appreciate"}, reply: "You're welcome!"},
	{keywords: []string{"bye", "goodbye", "see you"}, reply: "Goodbye — reach out anytime you need something done."},
	{keywords: []string{"are you there", "still there", "you there"}, reply: "Still here and ready when you are."},
}

const defaultReply = "I'm not sure how to respond to that, but I'm ready whenever you have a task for me."

// FallbackReply matches userText against the keyword groups in order and
// returns the first group's reply, or defaultReply if none match.
func FallbackReply(userText string) string {
	lower := strings.ToLower(userText)
	for _, group := range replyTable {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.reply
			}
		}
	}
	return defaultReply
}
