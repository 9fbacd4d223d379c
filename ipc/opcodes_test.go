package ipc

import "testing"

func TestFailureReason(t *testing.T) {
	cases := []struct {
		code RequestResultCode
		want string
	}{
		{ResultOK, ""},
		{ResultUnknownOpcode, "request.failure.unknown_opcode"},
		{ResultPayloadMalformed, "request.failure.payload_malformed"},
		{ResultUnknownMascotID, "request.failure.unknown_mascot_id"},
		{ResultUnknownPrototype, "request.failure.unknown_prototype"},
		{ResultSummonFailureNoEnv, "summon.failure.no_env"},
		{ResultSummonFailureNoProto, "summon.failure.no_proto"},
		{ResultBehaviourFailureNoBehaviour, "behaviour.failure.no_behaviour"},
		{ResultReloadFailureLoadFailed, "reload.failure.load_failed"},
		{ResultReloadFailureConfigProtected, "reload.failure.config_protected"},
		{ResultReloadFailureOOM, "reload.failure.oom"},
		{RequestResultCode(99), "request.failure.unknown"},
	}
	for _, c := range cases {
		if got := c.code.FailureReason(); got != c.want {
			t.Errorf("RequestResultCode(%d).FailureReason() = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestOpcodesAreDistinct(t *testing.T) {
	seen := map[uint8]bool{}
	ops := []uint8{
		OpClientHello, OpDescribePrototype, OpListMascotsByEnv, OpDescribeMascot,
		OpSummon, OpDismiss, OpSetBehaviour, OpReloadPrototype, OpStop, OpConfigGetSet,
		OpSubscribeEvent, OpUnsubscribeEvent, OpBeginSelection, OpCancelSelection,
	}
	for _, op := range ops {
		if seen[op] {
			t.Errorf("duplicate request opcode 0x%02X", op)
		}
		seen[op] = true
	}

	seen = map[uint8]bool{}
	responses := []uint8{
		OpServerHello, OpInitStatus, OpPrototypeAnnouncement, OpInfo, OpDone,
		OpDescriptionPart, OpDescriptionEnd, OpEnvironment, OpMascotAnnouncement,
		OpMascotIDList, OpMascotInfo, OpRequestResult, OpReloadResult,
		OpConfigResponse, OpSelectionResult, OpProtocolError,
	}
	for _, op := range responses {
		if seen[op] {
			t.Errorf("duplicate response opcode 0x%02X", op)
		}
		seen[op] = true
	}
}
