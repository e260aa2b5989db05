package project

import "time"

// SetNow freezes the clock used for past-date checks until the returned func is called.
func SetNow(now time.Time) (reset func()) {
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = time.Now }
}

// HeldLocks is the number of projects with a lock held or awaited.
func HeldLocks(svc *Service) int {
	svc.locksMu.Lock()
	defer svc.locksMu.Unlock()
	return len(svc.locks)
}

func Lock(svc *Service, id string) (unlock func()) {
	return svc.lock(id)
}
