package chain

import (
	"github.com/olegische/llmrouter/internal/billing"
	"github.com/olegische/llmrouter/internal/config"
)

// Build assembles the gateway's fixed five-stage chain from loaded
// configuration. billingClient may be nil when billingEnabled is false;
// the limitcheck/usagerecord stages then never run so they never dereference it.
func Build(cfg *config.Config, resolver Resolver, billingClient billing.Client) *Executor {
	enabled := cfg.Features.Billing
	return NewExecutor(
		&Transform{Resolver: resolver},
		Tokenize{},
		&LimitCheck{Billing: billingClient, Enabled: enabled},
		Completion{},
		&UsageRecord{Billing: billingClient, Enabled: enabled},
	)
}
