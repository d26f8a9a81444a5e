package ports

// Locker provides on-disk advisory locks. Locks coordinate installs of the
// same tool and shim reconciliation across processes on one host.
type Locker interface {
	// TryAcquire attempts the lock without blocking. It returns a
	// release function on success, or an error wrapping
	// domain.ErrInstallBusy when the lock is held elsewhere.
	TryAcquire(path string) (release func(), err error)

	// Acquire retries a bounded number of times before giving up with
	// domain.ErrInstallBusy.
	Acquire(path string) (release func(), err error)

	// Held reports whether a live process, the caller's own included,
	// currently holds the lock.
	Held(path string) bool
}
