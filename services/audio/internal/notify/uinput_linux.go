//go:build linux

package notify

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// linux/uinput.h, linux/input-event-codes.h
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565

	evSyn      = 0x00
	evKey      = 0x01
	synReport  = 0
	busVirtual = 0x06

	uinputNameLen = 80
	absCnt        = 64
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev is the legacy setup record written before UI_DEV_CREATE.
type uinputUserDev struct {
	Name         [uinputNameLen]byte
	ID           inputID
	FFEffectsMax uint32
	Absmax       [absCnt]int32
	Absmin       [absCnt]int32
	Absfuzz      [absCnt]int32
	Absflat      [absCnt]int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// UInput is a virtual keyboard registered through /dev/uinput.
type UInput struct {
	mu sync.Mutex
	fd int
}

// OpenUInput creates a virtual input device able to emit keys.
func OpenUInput(path, name string, keys ...uint16) (*UInput, error) {
	if path == "" {
		path = "/dev/uinput"
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*UInput, error) {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		return fail(err)
	}
	for _, k := range keys {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(k)); err != nil {
			return fail(err)
		}
	}
	var dev uinputUserDev
	copy(dev.Name[:uinputNameLen-1], name)
	dev.ID = inputID{Bustype: busVirtual, Vendor: 0x1, Product: 0x1, Version: 1}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &dev); err != nil {
		return fail(err)
	}
	if _, err := unix.Write(fd, buf.Bytes()); err != nil {
		return fail(err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fail(err)
	}
	return &UInput{fd: fd}, nil
}

// Key emits one key transition followed by a sync report.
func (u *UInput) Key(code uint16, pressed bool) error {
	v := int32(0)
	if pressed {
		v = 1
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.emit(evKey, code, v); err != nil {
		return err
	}
	return u.emit(evSyn, synReport, 0)
}

func (u *UInput) emit(typ, code uint16, val int32) error {
	ev := inputEvent{Time: unix.NsecToTimeval(time.Now().UnixNano()), Type: typ, Code: code, Value: val}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &ev); err != nil {
		return err
	}
	_, err := unix.Write(u.fd, buf.Bytes())
	return err
}

func (u *UInput) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	_ = unix.IoctlSetInt(u.fd, uiDevDestroy, 0)
	return unix.Close(u.fd)
}
