package assembler

// TokenEstimator estimates token counts for assembled context, so a
// harness can judge how much of a model's context window a render
// will consume before sending it. Grounded on the teacher's
// pkg/context/estimator.go (TokenEstimator interface, ~4
// chars-per-token heuristic), adapted from llm.ChatMessage to this
// package's own Message type.
type TokenEstimator interface {
	Estimate(text string) int
	EstimateMessages(messages []Message) int
}

// SimpleEstimator uses the same ~4-characters-per-token heuristic as
// the teacher's estimator — good enough for budget decisions without
// depending on a model-specific tokenizer.
type SimpleEstimator struct{}

func (SimpleEstimator) Estimate(text string) int {
	return len(text) / 4
}

func (e SimpleEstimator) EstimateMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += e.Estimate(m.Text)
		total += 4 // per-message role/separator overhead
	}
	return total
}

// EstimateTokens renders the full four-section sequence and reports
// its approximate token count, so callers can check it against a
// model's context window before assembling a turn.
func (a *Assembler) EstimateTokens(estimator TokenEstimator) int {
	if estimator == nil {
		estimator = SimpleEstimator{}
	}
	return estimator.EstimateMessages(a.Assemble())
}
