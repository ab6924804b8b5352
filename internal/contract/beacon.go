package contract

import (
	"fmt"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/fxamacker/cbor/v2"
)

// BeaconPausePath receives best-effort pauses sent while a client shuts down.
const BeaconPausePath = "/api/beacon/pause"

const CBORContentType = "application/cbor"

// BeaconPause asks the store to pause one owner. Integer keys keep the
// payload small enough for a teardown-time send.
type BeaconPause struct {
	Kind     string    `cbor:"1,keyasint"`
	OwnerID  string    `cbor:"2,keyasint"`
	IssuedAt time.Time `cbor:"3,keyasint"`
	Reason   string    `cbor:"4,keyasint,omitempty"`
}

func (b BeaconPause) Ref() (domain.OwnerRef, error) {
	kind, err := domain.ParseOwnerKind(b.Kind)
	if err != nil {
		return domain.OwnerRef{}, err
	}
	if b.OwnerID == "" {
		return domain.OwnerRef{}, fmt.Errorf("beacon pause: missing owner id")
	}
	return domain.OwnerRef{Kind: kind, ID: b.OwnerID}, nil
}

var (
	beaconEncMode cbor.EncMode
	beaconDecMode cbor.DecMode
)

func init() {
	var err error
	beaconEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("beacon CBOR encoder mode: %v", err))
	}
	beaconDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("beacon CBOR decoder mode: %v", err))
	}
}

func EncodeBeaconPause(b BeaconPause) ([]byte, error) {
	return beaconEncMode.Marshal(b)
}

func DecodeBeaconPause(data []byte) (BeaconPause, error) {
	var b BeaconPause
	if err := beaconDecMode.Unmarshal(data, &b); err != nil {
		return BeaconPause{}, fmt.Errorf("decoding beacon pause: %w", err)
	}
	return b, nil
}
