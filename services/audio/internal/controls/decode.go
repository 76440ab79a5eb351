package controls

import (
	"encoding/json"

	"audiocodec-go/errcode"
)

// decode accepts a typed payload, raw JSON, or a generic map.
func decode[T any](op string, src any) (T, error) {
	var dst T
	var err error
	switch v := src.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return dst, errcode.New(errcode.InvalidPayload, op, "nil payload")
		}
		return *v, nil
	case []byte:
		err = json.Unmarshal(v, &dst)
	case string:
		err = json.Unmarshal([]byte(v), &dst)
	case nil:
		return dst, errcode.New(errcode.InvalidPayload, op, "missing payload")
	default:
		var b []byte
		if b, err = json.Marshal(v); err == nil {
			err = json.Unmarshal(b, &dst)
		}
	}
	if err != nil {
		return dst, errcode.Wrap(errcode.InvalidPayload, op, err)
	}
	return dst, nil
}
