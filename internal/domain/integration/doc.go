// Package integration contains the Integration bounded context.
// It manages a supplier's links to external sales channels and keeps
// active product records synchronized with their remote listings.
//
// Key concepts:
//   - ChannelConnection: one supplier's link to one channel, with health status
//   - ProductChannelMapping: join between a product record and a connection, with sync state
//   - SyncAttempt: append-only audit of remote calls, used for backoff and diagnosis
//   - RemoteOrder: an order pulled from a channel, resolved to a local product or error-tagged
//   - ChannelClient: port for the remote channel API
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
