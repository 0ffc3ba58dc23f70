// Package nlp provides the chat-completion client used for relevance judgments.
//
// The judgment collaborator asks a language model whether a domain can answer a
// query, whether collaboration is worthwhile, and to synthesize an answer. This
// package supplies the transport for those calls.
//
// # Usage
//
//	base, err := nlp.NewOpenAIClient(cfg.Judgment)
//	if err != nil {
//		return err
//	}
//	var client nlp.Client = nlp.NewRetryClient(base, nlp.DefaultRetryConfig())
//	client = nlp.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, "judgment", logger)
//	resp, err := client.ChatWithStructuredOutput(ctx, messages, nil)
//
// # Errors
//
// Calls that reach the service but yield nothing usable return a *CallError that
// unwraps to ErrRateLimit, ErrRefusal or ErrEmptyResponse. Rate limits are retried;
// refusals and empty responses do not count against the circuit breaker.
package nlp
