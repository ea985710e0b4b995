// Package chatbot is a general-purpose conversational bot with per-chat
// memory, human handoff and model function calling, running on the same
// transports as the expense assistant.
package chatbot

import (
	"time"

	"github.com/dvloznov/expense-bot/internal/config"
)

// Persona holds everything that makes one bot variant different from another.
type Persona struct {
	Name         string
	Instructions string
	Model        string
	Temperature  float32

	WelcomeMessage        string
	UnknownCommandMessage string
	ChatAssignedMessage   string
	QuotaExceededMessage  string
	RateLimitedMessage    string
	NoAudioMessage        string

	Limits   Limits
	Features Features
}

type Limits struct {
	MaxInputCharacters int
	ChatHistoryLimit   int
	MaxMessagesPerChat int
	QuotaWindow        time.Duration
	CacheTTL           time.Duration
	MaxFunctionCalls   int
}

type Features struct {
	AudioInput  bool
	AudioOutput bool
}

const salesInstructions = "You are a smart virtual sales and customer support assistant.\n" +
	"You will be chatting with customers who contact you with general queries about the product and its plans.\n" +
	"Be polite. Be helpful. Be concise.\n" +
	"Use the available functions to look up plans and prices, check meeting availability and book meetings.\n" +
	"Always verify availability before booking a meeting.\n" +
	"Politely reject queries unrelated to the product.\n" +
	"Always speak in the language the user uses.\n" +
	"If you can't help with something, ask the user to type human to talk with the team.\n" +
	"Do not use Markdown, only raw text."

const soccerInstructions = "You are a friendly soccer assistant.\n" +
	"Answer questions about soccer rules, tactics, training and famous matches.\n" +
	"Be concise and enthusiastic. Politely decline topics unrelated to soccer.\n" +
	"Always speak in the language the user uses. Do not use Markdown, only raw text."

// SalesPersona returns the default sales assistant.
func SalesPersona() Persona {
	return Persona{
		Name:                  "sales",
		Instructions:          salesInstructions,
		Model:                 "gemini-2.5-flash",
		Temperature:           0.2,
		WelcomeMessage:        "Hey there! I'm your AI assistant. Ask me anything about our plans, or book a demo.",
		UnknownCommandMessage: "I'm sorry, I was unable to understand your message. Can you please elaborate more?\n\nIf you would like to chat with a human, just reply with human.",
		ChatAssignedMessage:   "You will be contacted shortly by someone from our team. Thank you for your patience.",
		QuotaExceededMessage:  "You have reached the maximum number of messages. Please try again later.",
		RateLimitedMessage:    "I'm receiving too many requests right now. Please try again in a moment.",
		NoAudioMessage:        "Audio messages are not supported. Please send a text message.",
		Limits: Limits{
			MaxInputCharacters: 1000,
			ChatHistoryLimit:   20,
			MaxMessagesPerChat: 500,
			QuotaWindow:        24 * time.Hour,
			CacheTTL:           10 * time.Minute,
			MaxFunctionCalls:   5,
		},
		Features: Features{AudioInput: true},
	}
}

// SoccerPersona is the second product variant; it has no functions.
func SoccerPersona() Persona {
	p := SalesPersona()
	p.Name = "soccer"
	p.Instructions = soccerInstructions
	p.WelcomeMessage = "Hi! Ask me anything about soccer."
	return p
}

// PersonaFromConfig starts from the named built-in persona and applies
// configured overrides.
func PersonaFromConfig(cfg config.ChatbotConfig) Persona {
	p := SalesPersona()
	if cfg.Persona == "soccer" {
		p = SoccerPersona()
	}
	if cfg.Instructions != "" {
		p.Instructions = cfg.Instructions
	}
	if cfg.Model != "" {
		p.Model = cfg.Model
	}
	if cfg.Temperature > 0 {
		p.Temperature = cfg.Temperature
	}
	if cfg.MaxInputCharacters > 0 {
		p.Limits.MaxInputCharacters = cfg.MaxInputCharacters
	}
	if cfg.ChatHistoryLimit > 0 {
		p.Limits.ChatHistoryLimit = cfg.ChatHistoryLimit
	}
	if cfg.MaxMessagesPerChat >= 0 {
		p.Limits.MaxMessagesPerChat = cfg.MaxMessagesPerChat
	}
	if cfg.QuotaWindow > 0 {
		p.Limits.QuotaWindow = cfg.QuotaWindow
	}
	if cfg.CacheTTL > 0 {
		p.Limits.CacheTTL = cfg.CacheTTL
	}
	if cfg.MaxFunctionCalls > 0 {
		p.Limits.MaxFunctionCalls = cfg.MaxFunctionCalls
	}
	p.Features.AudioInput = cfg.AudioInput
	p.Features.AudioOutput = cfg.AudioOutput
	return p
}
