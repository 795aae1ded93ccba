package classifier

import (
	"strings"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

var systemInstruction = buildSystemInstruction()

func buildSystemInstruction() string {
	intents := make([]string, len(domain.Intents))
	for i, in := range domain.Intents {
		intents[i] = string(in)
	}

	var b strings.Builder
	b.WriteString("You classify events emitted by a services marketplace (bookings, payments, escrow, ")
	b.WriteString("providers, customer support, GPS, POS and CRM).\n")
	b.WriteString("Valid intents: ")
	b.WriteString(strings.Join(intents, ", "))
	b.WriteString(".\n")
	b.WriteString("Valid risk levels: low, medium, high, critical.\n")
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"intent": string, "confidence": number between 0 and 1, "reasoning": string, `)
	b.WriteString(`"recommendedActions": [{"action": string, "priority": "low"|"medium"|"high"|"critical", `)
	b.WriteString(`"estimatedTime": string, "requiresHuman": boolean}], "riskLevel": string}`)
	return b.String()
}
