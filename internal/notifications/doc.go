// Package notifications delivers outbound messages: the conversion status
// webhook posted to a job's callback URL, and optional ntfy alerts for the
// operator when a job fails.
//
// Both go through resty clients with a bounded timeout. Webhook delivery
// failures surface as services.ErrConnection and are never retried here; the
// workflow manager records the outcome on the job.
package notifications
