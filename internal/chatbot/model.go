package chatbot

import "context"

// FunctionCall is a model request to run a function.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// FunctionResult answers one FunctionCall.
type FunctionResult struct {
	ID     string
	Name   string
	Output string
}

// Message is one entry of the conversation sent to the model. Exactly one
// of Text, Calls or Results is set.
type Message struct {
	Role    string
	Text    string
	Calls   []FunctionCall
	Results []FunctionResult
}

// GenerateRequest is a full model turn.
type GenerateRequest struct {
	Model       string
	System      string
	Temperature float32
	Messages    []Message
	Functions   []FunctionSpec
}

// Reply is the model's answer: either text or function calls.
type Reply struct {
	Text  string
	Calls []FunctionCall
}

// Generator produces the next model turn.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Reply, error)
}
