// Package workers holds the example workers used by the demo command and by
// the bridge's end to end tests. Register adds all of them to a registry.
package workers
