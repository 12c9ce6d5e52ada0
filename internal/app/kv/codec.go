package kv

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so equal records produce identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("kv: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("kv: CBOR decoder initialization failed: " + err.Error())
	}
}

// userRecord is the stored form of an account.
type userRecord struct {
	ID           string `cbor:"1,keyasint"`
	Username     string `cbor:"2,keyasint"`
	Email        string `cbor:"3,keyasint"`
	PasswordHash string `cbor:"4,keyasint"`
	CreatedAt    int64  `cbor:"5,keyasint"`
}

// messageRecord is the stored form of a message. CreatedAt is Unix nanoseconds.
type messageRecord struct {
	ID         string `cbor:"1,keyasint"`
	SenderID   string `cbor:"2,keyasint"`
	ReceiverID string `cbor:"3,keyasint"`
	Content    string `cbor:"4,keyasint"`
	CreatedAt  int64  `cbor:"5,keyasint"`
}
