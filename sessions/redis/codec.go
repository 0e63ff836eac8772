package redis

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/jrsteele09/crm-session-broker/sessions"
	"github.com/pkg/errors"
)

// Sessions are stored as CBOR. RFC3339 nano keeps openedAt exact across a round trip.
var encMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

func encode(s sessions.Session) ([]byte, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding session")
	}
	return data, nil
}

func decode(data []byte) (sessions.Session, error) {
	var s sessions.Session
	if err := cbor.Unmarshal(data, &s); err != nil {
		return sessions.Session{}, errors.Wrap(err, "error decoding session")
	}
	return s, nil
}
