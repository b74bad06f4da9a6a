package wire

// Type is the 1-byte frame discriminant every PDU begins with.
type Type uint8

const (
	TypeStunLookup         Type = 0x01
	TypeStunResponse       Type = 0x02
	TypeNetAlive           Type = 0x03
	TypeNetGetNode         Type = 0x04
	TypeNetGetNodeResponse Type = 0x05
	TypeNetJoin            Type = 0x06
	TypeNetJoinResponse    Type = 0x07
	TypeNetLeaving         Type = 0x08
	TypeNetNewRange        Type = 0x09
	TypeNetNewRangeResponse Type = 0x0A
	TypeNetCloseConnection  Type = 0x0B
	TypeValInsert           Type = 0x0C
	TypeValRemove           Type = 0x0D
	TypeValLookup           Type = 0x0E
	TypeValLookupResponse   Type = 0x0F
)

// Frame is any parsed PDU. Every concrete frame type below satisfies it.
type Frame interface {
	Type() Type
	Serialize() []byte
}

// StunLookup asks the tracker for this node's own public address.
type StunLookup struct{}

// StunResponse carries the tracker's view of the caller's address.
type StunResponse struct {
	Address uint32
}

// NetAlive is the periodic keep-alive sent to the tracker.
type NetAlive struct{}

// NetGetNode asks the tracker for an existing ring member to join through.
type NetGetNode struct{}

// NetGetNodeResponse names a ring member the tracker picked.
type NetGetNodeResponse struct {
	Address uint32
	Port    uint16
}

// NetJoin is relayed around the ring while looking for the node with the
// largest owned span, who will accept the sender as its new successor.
type NetJoin struct {
	SrcAddr  uint32
	SrcPort  uint16
	MaxSpan  uint8
	MaxAddr  uint32
	MaxPort  uint16
}

// NetJoinResponse hands the joiner its assigned range and its new successor.
type NetJoinResponse struct {
	NextAddr   uint32
	NextPort   uint16
	RangeStart uint8
	RangeEnd   uint8
}

// NetLeaving announces a departing node's replacement successor/predecessor.
type NetLeaving struct {
	NewAddr uint32
	NewPort uint16
}

// NetNewRange asks a neighbor to absorb an abandoned range.
type NetNewRange struct {
	RangeStart uint8
	RangeEnd   uint8
}

// NetNewRangeResponse acknowledges a NetNewRange.
type NetNewRangeResponse struct{}

// NetCloseConnection signals the receiver should close the link.
type NetCloseConnection struct{}

// ValInsert carries a record for the ring to store.
type ValInsert struct {
	SSN   [12]byte
	Name  string
	Email string
}

// ValRemove asks the owning node to delete a record.
type ValRemove struct {
	SSN [12]byte
}

// ValLookup asks the owning node to return a record to sender over UDP.
type ValLookup struct {
	SSN        [12]byte
	SenderAddr uint32
	SenderPort uint16
}

// ValLookupResponse is the answer to a ValLookup, sent over UDP. A record
// not found is represented by empty Name and Email.
type ValLookupResponse struct {
	SSN   [12]byte
	Name  string
	Email string
}

func (StunLookup) Type() Type          { return TypeStunLookup }
func (StunResponse) Type() Type        { return TypeStunResponse }
func (NetAlive) Type() Type            { return TypeNetAlive }
func (NetGetNode) Type() Type          { return TypeNetGetNode }
func (NetGetNodeResponse) Type() Type  { return TypeNetGetNodeResponse }
func (NetJoin) Type() Type             { return TypeNetJoin }
func (NetJoinResponse) Type() Type     { return TypeNetJoinResponse }
func (NetLeaving) Type() Type          { return TypeNetLeaving }
func (NetNewRange) Type() Type         { return TypeNetNewRange }
func (NetNewRangeResponse) Type() Type { return TypeNetNewRangeResponse }
func (NetCloseConnection) Type() Type  { return TypeNetCloseConnection }
func (ValInsert) Type() Type           { return TypeValInsert }
func (ValRemove) Type() Type           { return TypeValRemove }
func (ValLookup) Type() Type           { return TypeValLookup }
func (ValLookupResponse) Type() Type   { return TypeValLookupResponse }
