// Package events fans task and sync lifecycle events out to uninvolved
// observers such as logging and notifications.
//
// Emission never blocks the emitter: subscribers that fall behind lose
// events rather than stalling the sync pipeline.
package events
