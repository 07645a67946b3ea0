package aps

import (
	"errors"

	"github.com/nugget/zigbeesim/internal/zigbee/apswire"
	"github.com/nugget/zigbeesim/internal/zigbee/nwk"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

func (s *Stack) pendFanout(dst nwkaddr.Addr, fo *fanout) {
	s.pending[dst] = append(s.pending[dst], fo)
}

// resolveFanout folds one underlying send's outcome into fo, emitting
// the overall APSDE-DATA.confirm once every fanned-out copy has
// reported (§4.6 "for each destination, send a copy").
func (s *Stack) resolveFanout(fo *fanout, status ConfirmStatus) {
	if status != Success && fo.worst == Success {
		fo.worst = status
	}
	fo.remaining--
	if fo.remaining <= 0 {
		s.confirmNow(fo.worst, fo.dstEndpoint)
	}
}

// onNldeDataConfirm is NWK's NLDE-DATA.confirm sink, correlated back
// to the APSDE-DATA.request fanout it belongs to by destination.
func (s *Stack) onNldeDataConfirm(c nwk.NldeDataConfirmParams) {
	queue := s.pending[c.Destination]
	if len(queue) == 0 {
		return
	}
	fo := queue[0]
	s.pending[c.Destination] = queue[1:]

	status := Success
	if c.Status != nwk.Success {
		status = NotSupported // generic translation; specific NWK failures have no closer APS analogue
	}
	s.resolveFanout(fo, status)
}

// onNldeDataIndication is NWK's NLDE-DATA.indication sink (§4.6
// "APSDE-DATA.indication").
func (s *Stack) onNldeDataIndication(ind nwk.NldeDataIndicationParams) {
	if ind.Security {
		// SECURITY_FAIL (§4.6 step 1, stub): this module implements no
		// crypto, so any inbound frame with the NWK security flag set
		// cannot be authenticated and is dropped. No confirm path for
		// inbound drops.
		s.logger.Warn("aps indication dropped: security flag set", "src", ind.Source)
		return
	}

	hdr, asdu, err := decodeFrame(ind.Nsdu)
	if err != nil {
		if errors.Is(err, apswire.ErrExtendedHeaderUnsupported) {
			return // DEFRAG_UNSUPPORTED (§4.6 step 2); no confirm path for inbound drops
		}
		return
	}

	switch hdr.FrameType {
	case apswire.FrameData:
		s.deliverData(hdr, ind, asdu)
	default:
		// ACK, COMMAND, INTERPAN are not supported (§4.6 step 4).
	}
}

func (s *Stack) deliverData(hdr *apswire.Header, ind nwk.NldeDataIndicationParams, asdu []byte) {
	if s.dataIndicationCb == nil {
		return
	}
	switch hdr.DeliveryMode {
	case apswire.DeliveryUnicast, apswire.DeliveryBroadcast:
		s.dataIndicationCb(DataIndicationParams{
			DstMode:     ShortEP,
			SrcAddr16:   ind.Source,
			SrcEndpoint: hdr.SrcEndpoint,
			DstEndpoint: hdr.DstEndpoint,
			ClusterID:   hdr.ClusterID,
			ProfileID:   hdr.ProfileID,
			Asdu:        asdu,
		})
	case apswire.DeliveryGroupAddressing:
		for _, ep := range s.groups.LookupEndpoints(hdr.GroupAddr) {
			cp := make([]byte, len(asdu))
			copy(cp, asdu)
			s.dataIndicationCb(DataIndicationParams{
				DstMode:     Group,
				SrcAddr16:   ind.Source,
				SrcEndpoint: hdr.SrcEndpoint,
				DstEndpoint: ep,
				GroupID:     hdr.GroupAddr,
				ClusterID:   hdr.ClusterID,
				ProfileID:   hdr.ProfileID,
				Asdu:        cp,
			})
		}
	}
}
