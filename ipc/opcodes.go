package ipc

// Request opcodes (spec.md §4.G), client to server.
const (
	OpClientHello        uint8 = 0x00
	OpDescribePrototype  uint8 = 0x06
	OpListMascotsByEnv   uint8 = 0x0B
	OpDescribeMascot     uint8 = 0x0D
	OpSummon             uint8 = 0x0F
	OpDismiss            uint8 = 0x10
	OpSetBehaviour       uint8 = 0x11
	OpReloadPrototype    uint8 = 0x13
	OpStop               uint8 = 0x16
	OpConfigGetSet       uint8 = 0x17
	OpSubscribeEvent     uint8 = 0x20
	OpUnsubscribeEvent   uint8 = 0x21
	OpBeginSelection     uint8 = 0x2C
	OpCancelSelection    uint8 = 0x2D
)

// Response opcodes (spec.md §4.G), server to client.
const (
	OpServerHello           uint8 = 0x01
	OpInitStatus            uint8 = 0x02
	OpPrototypeAnnouncement uint8 = 0x03
	OpInfo                  uint8 = 0x04
	OpDone                  uint8 = 0x05
	OpDescriptionPart       uint8 = 0x07
	OpDescriptionEnd        uint8 = 0x08
	OpEnvironment           uint8 = 0x09
	OpMascotAnnouncement    uint8 = 0x0A
	OpMascotIDList          uint8 = 0x0C
	OpMascotInfo            uint8 = 0x0E
	OpRequestResult         uint8 = 0x12
	OpReloadResult          uint8 = 0x14
	OpConfigResponse        uint8 = 0x18
	OpSelectionResult       uint8 = 0x2E
	OpProtocolError         uint8 = 0x31
)

// RequestResultCode is the `result` field of an OpRequestResult response
// (spec.md §7 "IPC" error kinds).
type RequestResultCode uint8

const (
	ResultOK RequestResultCode = iota
	ResultUnknownOpcode
	ResultPayloadMalformed
	ResultUnknownMascotID
	ResultUnknownPrototype
	ResultSummonFailureNoEnv
	ResultSummonFailureNoProto
	ResultBehaviourFailureNoBehaviour
	ResultReloadFailureLoadFailed
	ResultReloadFailureConfigProtected
	ResultReloadFailureOOM
)

// FailureReason returns the dotted reason string spec.md's IPC error
// scenarios refer to (e.g. "reload.failure.load_failed").
func (c RequestResultCode) FailureReason() string {
	switch c {
	case ResultOK:
		return ""
	case ResultUnknownOpcode:
		return "request.failure.unknown_opcode"
	case ResultPayloadMalformed:
		return "request.failure.payload_malformed"
	case ResultUnknownMascotID:
		return "request.failure.unknown_mascot_id"
	case ResultUnknownPrototype:
		return "request.failure.unknown_prototype"
	case ResultSummonFailureNoEnv:
		return "summon.failure.no_env"
	case ResultSummonFailureNoProto:
		return "summon.failure.no_proto"
	case ResultBehaviourFailureNoBehaviour:
		return "behaviour.failure.no_behaviour"
	case ResultReloadFailureLoadFailed:
		return "reload.failure.load_failed"
	case ResultReloadFailureConfigProtected:
		return "reload.failure.config_protected"
	case ResultReloadFailureOOM:
		return "reload.failure.oom"
	default:
		return "request.failure.unknown"
	}
}

// mascotIDPageSize bounds each mascot-id-list response (supplemented
// feature, SPEC_FULL.md supplemented feature 6: packet_handler.c-style bounded
// batching rather than one giant payload).
const mascotIDPageSize = 64
