package assistant

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt renders the model instructions from the registry, so the
// operations the model may name are exactly the ones that can be dispatched.
func BuildSystemPrompt(r *Registry, defaultCurrency string) string {
	descs := r.Descriptors()

	names := make([]string, 0, len(descs)+1)
	for _, d := range descs {
		names = append(names, fmt.Sprintf("%q", d.Operation))
	}
	names = append(names, fmt.Sprintf("%q", Unresolved))

	var b strings.Builder
	b.WriteString("You are an assistant for a personal finance bot.\n\n")
	b.WriteString("Your job:\n")
	b.WriteString("- Understand user messages about expenses, income, balance queries and summary requests.\n")
	b.WriteString("- Return a STRICT JSON object with exactly these fields:\n\n")
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"tool\": %s,\n", strings.Join(names, " | "))
	b.WriteString("  \"arguments\": object,\n")
	b.WriteString("  \"error\": string | null\n")
	b.WriteString("}\n\n")

	b.WriteString("Tools:\n")
	for _, d := range descs {
		fmt.Fprintf(&b, "- %s: %s\n", d.Operation, d.Description)
		for _, p := range d.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Doc)
		}
	}

	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Default currency is %q unless the user names another one.\n", defaultCurrency)
	b.WriteString("- amount must be a plain number (no currency symbols).\n")
	b.WriteString("- Dates are ISO format YYYY-MM-DD. Leave a date out to use its default.\n")
	b.WriteString("- Do not invent user_id; it is provided separately.\n")
	fmt.Fprintf(&b, "- If you can't interpret the message, set tool to %q and explain in error.\n", Unresolved)
	b.WriteString("- Output raw JSON only. No Markdown, no code fences.\n")

	b.WriteString("\nExamples:\n")
	for _, d := range descs {
		for _, ex := range d.Examples {
			fmt.Fprintf(&b, "- %q -> {\"tool\": %q, \"arguments\": %s}\n", ex.Message, d.Operation, ex.Arguments)
		}
	}
	return b.String()
}

// userTurn is the single user message sent with every resolution request.
func userTurn(userID, message string) string {
	return "User ID: " + userID + "\nMessage: " + message
}
