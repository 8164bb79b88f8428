package services

import (
	"strings"
	"time"
)

const PersonaPrompt = `You are Kyro, a helpful AI assistant for AspireAI. You provide support related to mental health and academics. Be friendly, empathetic, and concise in your responses.`

// User-facing texts.
const (
	IntroReply       = "Hello! 👋 I'm Kyro. I'm here to help you with academics and mental health. What would you like to talk about today?"
	HelpReply        = "I can help you with:\n• Study planning and time management\n• Stress and anxiety management\n• Career guidance\n• Academic challenges\n\nWhat do you need help with?"
	ApologyText      = "I'm having trouble right now. Please try 'hi' or 'help' for quick responses."
	GenericErrorText = "Sorry, I encountered an error. Please try again."
	NoMessageText    = "No message provided."
	NoSessionIDText  = "sessionId required"
)

var greetingTokens = map[string]bool{
	"hi":    true,
	"hello": true,
	"hey":   true,
}

func isGreeting(normalized string) bool {
	return greetingTokens[normalized]
}

func isHelpRequest(normalized string) bool {
	return strings.Contains(normalized, "help")
}

// timeOfDayGreeting uses the clock's own location.
func timeOfDayGreeting(t time.Time) string {
	switch hour := t.Hour(); {
	case hour < 12:
		return "Good morning! ☀️"
	case hour < 18:
		return "Good afternoon! 😊"
	default:
		return "Good evening! 🌙"
	}
}

func withPersona(message string) string {
	return PersonaPrompt + "\n\nUser: " + message
}
