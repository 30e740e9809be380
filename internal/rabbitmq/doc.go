// Package rabbitmq provides the RabbitMQ transport for messagebroker.
//
// This package includes:
//   - ConnectionManager: one lazily dialed connection and its single channel
//   - Publisher: publishes prepared messages on that channel
//   - TLSOptions: trust store and client certificate settings for amqps
//
// A ConnectionManager moves from disconnected to connected exactly once.
// Failed attempts leave it disconnected, so the next publish dials again;
// there is no background reconnection, retry or publisher confirms.
package rabbitmq
