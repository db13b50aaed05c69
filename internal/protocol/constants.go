// Package protocol holds the MTProto wire constructor identifiers shared
// between the transport and handshake layers.
package protocol

// Handshake constructor identifiers, spec.md §4.5.
const (
	CodeReqPQ              uint32 = 0x60469778
	CodeResPQ              uint32 = 0x05162463
	CodeReqDHParams        uint32 = 0xd712e4be
	CodeServerDHParamsFail uint32 = 0x79cb045d
	CodeServerDHParamsOK   uint32 = 0xd0e8075c
	CodePQInnerData        uint32 = 0x83c95aec
	CodeClientDHInnerData  uint32 = 0x6643b654
	CodeServerDHInnerData  uint32 = 0xb5890dba
	CodeSetClientDHParams  uint32 = 0xf5045f1f
	CodeDHGenOK            uint32 = 0x3bcbf734
	CodeDHGenRetry         uint32 = 0x46dc1fb9
	CodeDHGenFail          uint32 = 0xa69dae02
	VectorMarker           uint32 = 0x1cb5c415
	CodeMessageContainer   uint32 = 0x73f1f8dc

	// CodeRSAPublicKey is the RSA_public_key TL constructor, used only to
	// derive fingerprints (SPEC_FULL.md §4.6).
	CodeRSAPublicKey uint32 = 0x7a19cb76
)
