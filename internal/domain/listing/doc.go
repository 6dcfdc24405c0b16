// Package listing contains the Listing bounded context.
// It covers the path from a discovered source page to a catalog entry that may be sold.
//
// Key concepts:
//   - CandidateListing: unpersisted Extractor output for a source URL
//   - ProductRecord: aggregate root whose Status follows the lifecycle state machine
//   - TransitionRecord: append-only history of lifecycle changes (actor, time, reason)
//   - SimilarityScorer: deterministic duplicate detection against a bounded corpus
//   - ApprovalPolicy: decides between auto-approval and the review queue
//   - OrderAutomation: port to the upstream supplier network, invoked once per activation
//
// Design Pattern: Ports & Adapters
//   - Extractor and OrderAutomation are ports implemented in infrastructure
package listing
