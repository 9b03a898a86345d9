// Package reminder is the scheduling and delivery engine.
//
// A scan loop polls the event source and subscriber registry on a fixed
// tick, computes which (event, recipient, window) reminders are due, and
// launches one supervised delivery task per due reminder. Delivered keys
// are recorded durably so restarts never re-send; in-flight markers stop
// two concurrent tasks from racing on the same key. A grace test keeps
// stale reminders from firing long after their moment.
package reminder
