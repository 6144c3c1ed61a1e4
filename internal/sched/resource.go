package sched

import (
	"strings"
	"sync/atomic"
)

// ResourceID is a bitmask over the shared resources a task may touch.
type ResourceID uint8

const (
	ResourceNone      ResourceID = 0
	ResourceSD        ResourceID = 1 << 0
	ResourceUSB       ResourceID = 1 << 1
	ResourceSDRoutine ResourceID = 1 << 2
)

var resourceNames = [...]struct {
	id   ResourceID
	name string
}{
	{ResourceSD, "sd"},
	{ResourceUSB, "usb"},
	{ResourceSDRoutine, "sd_routine"},
}

func (r ResourceID) String() string {
	if r == ResourceNone {
		return "none"
	}
	var parts []string
	for _, rn := range resourceNames {
		if r&rn.id != 0 {
			parts = append(parts, rn.name)
		}
	}
	if rest := r &^ (ResourceSD | ResourceUSB | ResourceSDRoutine); rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// ResourceLocks holds the "someone is using this" flags for every resource.
// The code that actually drives the SD card or USB bus sets and clears them;
// the scheduler only reads them. Atomic so interrupt-style goroutines may
// flip a flag too.
type ResourceLocks struct {
	held atomic.Uint32
}

func (l *ResourceLocks) Lock(r ResourceID)   { l.held.Or(uint32(r)) }
func (l *ResourceLocks) Unlock(r ResourceID) { l.held.And(^uint32(r)) }

// Held reports whether any resource in r is currently locked.
func (l *ResourceLocks) Held(r ResourceID) bool {
	return ResourceID(l.held.Load())&r != 0
}

func (l *ResourceLocks) Snapshot() ResourceID {
	return ResourceID(l.held.Load())
}

// ResourceChecker gates scheduling on a set of resources. It is a cheap
// priority-ceiling substitute: a task that might yield while holding one
// resource is not started while another task holds a resource it needs, so
// two interleaved bodies never wait on each other. Nothing is enforced; task
// code must set and clear the flags around its real resource use.
type ResourceChecker struct {
	resources ResourceID
}

func NewResourceChecker(r ResourceID) ResourceChecker {
	return ResourceChecker{resources: r}
}

// CheckResources reports whether none of the checker's resources are held.
func (c ResourceChecker) CheckResources(locks *ResourceLocks) bool {
	if c.resources == ResourceNone || locks == nil {
		return true
	}
	return !locks.Held(c.resources)
}

func (c ResourceChecker) Resources() ResourceID { return c.resources }
