package aps

import "github.com/nugget/zigbeesim/internal/zigbee/apswire"

func (s *Stack) apsHeader(ft apswire.FrameType, dm apswire.DeliveryMode, params DataRequestParams) *apswire.Header {
	h := &apswire.Header{
		FrameType:    ft,
		DeliveryMode: dm,
		Security:     params.TxOptions.has(TxSecurity),
		ClusterID:    params.ClusterID,
		ProfileID:    params.ProfileID,
		SrcEndpoint:  params.SrcEndpoint,
	}
	if params.UseAlias {
		h.ApsCounter = params.AliasSeq
	} else {
		h.ApsCounter = s.nextApsCounter()
	}
	return h
}

// encodeFrame serializes an APS header and its payload into one
// NSDU for NWK to carry.
func encodeFrame(hdr *apswire.Header, payload []byte) []byte {
	buf := make([]byte, hdr.SerializedSize()+len(payload))
	hdr.Serialize(buf)
	copy(buf[hdr.SerializedSize():], payload)
	return buf
}

// decodeFrame parses an APS header off the front of an NSDU, returning
// the header and the remaining ASDU bytes.
func decodeFrame(nsdu []byte) (*apswire.Header, []byte, error) {
	hdr := &apswire.Header{}
	n, err := hdr.Deserialize(nsdu)
	if n == 0 {
		return hdr, nil, err
	}
	return hdr, nsdu[n:], err
}
