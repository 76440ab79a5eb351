//go:build !linux

package notify

import "audiocodec-go/errcode"

// UInput is only available on Linux.
type UInput struct{}

func OpenUInput(path, name string, keys ...uint16) (*UInput, error) {
	return nil, errcode.Unsupported
}

func (u *UInput) Key(code uint16, pressed bool) error { return errcode.Unsupported }
func (u *UInput) Close() error                        { return nil }
