package chat

// dangerousKeywords is the fast-path matcher: any hit escalates immediately
// without waiting for the full scorer.
var dangerousKeywords = []string{
	"kill myself", "suicide", "end it", "not worth living",
	"hurt myself", "cut myself", "want to die", "want to disappear",
}

const crisisResponse = "I'm really concerned about what you're sharing. Your safety is important, " +
	"and I want to make sure you get the right support. I'm connecting you with a professional who can help. " +
	"Please know that you're not alone, and there are people who care about you."

// responseFor picks the bot reply for a matched SOP category. The bot gathers
// history and listens; it never gives medical advice.
func responseFor(category string) string {
	switch category {
	case "anxiety":
		return "I understand this feels overwhelming. Can you help me understand what's making you feel anxious? " +
			"What situations or thoughts trigger these feelings? " +
			"Remember, I'm here to listen and support you, not to provide medical advice."
	case "depression":
		return "I hear that you're going through a difficult time. How long have you been feeling this way? " +
			"What does a typical day look like for you right now? " +
			"I'm here to listen and help you find appropriate support."
	case "panic":
		return "That sounds really frightening. When these moments happen, what do you notice in your body first? " +
			"You're safe talking here, and we can take this one step at a time. " +
			"I'm here to listen, not to provide medical advice."
	default:
		return "Thank you for sharing. I want to understand your situation better. " +
			"Can you tell me more about what you're experiencing? " +
			"What would be most helpful for you right now?"
	}
}

const defaultResponse = "I'm here to listen and support you. Can you tell me more about what's on your mind? " +
	"What's been challenging for you lately? " +
	"Remember, I'm here to gather information and help you find the right support, not to provide medical advice."
