package types

import "strings"

// ConversationSeparator joins the two participant ids of a conversation id.
const ConversationSeparator = "_"

// ConversationID derives the canonical id for the two-party thread between
// a and b. The participants are sorted lexicographically before joining, so
// ConversationID(a, b) == ConversationID(b, a) and both sides always address
// the same thread regardless of who initiates.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ConversationSeparator + b
}

// ConversationParticipants splits a conversation id back into its two
// participant ids.
func ConversationParticipants(conversationID string) (string, string) {
	parts := strings.SplitN(conversationID, ConversationSeparator, 2)
	if len(parts) != 2 {
		return conversationID, ""
	}
	return parts[0], parts[1]
}

// ConversationHas reports whether userID is one of the two participants of
// the conversation id.
func ConversationHas(conversationID, userID string) bool {
	a, b := ConversationParticipants(conversationID)
	return userID != "" && (a == userID || b == userID)
}
