package wake

import (
	"os"
	"strconv"
	"time"
)

// SysfsLocker drives the Android wakelock interface. The kernel also enforces
// the timeout passed with each acquire.
type SysfsLocker struct {
	Name       string
	LockPath   string // default /sys/power/wake_lock
	UnlockPath string // default /sys/power/wake_unlock
}

func (s SysfsLocker) paths() (string, string) {
	lock, unlock := s.LockPath, s.UnlockPath
	if lock == "" {
		lock = "/sys/power/wake_lock"
	}
	if unlock == "" {
		unlock = "/sys/power/wake_unlock"
	}
	return lock, unlock
}

func (s SysfsLocker) Acquire(window time.Duration) error {
	lock, _ := s.paths()
	return writeAttr(lock, s.Name+" "+strconv.FormatInt(window.Nanoseconds(), 10))
}

func (s SysfsLocker) Release() error {
	_, unlock := s.paths()
	return writeAttr(unlock, s.Name)
}

func writeAttr(path, v string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, err = f.WriteString(v)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
