// Package manager coordinates access to the single loaded model. Only one
// generation runs at a time; further requests wait in a bounded FIFO queue or
// are rejected with a CapacityError.
//
//   - manager.go: Manager type, constructor, Begin and simple getters.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: lifecycle state and snapshot types.
//   - errors.go: CapacityError and the unavailable error, with Is helpers.
//   - admission.go: queue slot and generation slot acquisition.
//   - events.go, eventpub_*.go: lifecycle events and publishers.
//   - status_report.go: Status/Snapshot reporting for /status.
//   - metrics.go: prometheus collectors for the queue.
//
// Validation happens before admission, so rejected requests never take a
// queue slot or touch a model session.
package manager
