package mediaengine

import (
	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

const (
	videoPayloadType = 96
	audioPayloadType = 111
)

// One codec per kind: relays copy packets between elements unchanged, so
// every element must agree on it.
var (
	videoRTCPFeedback = []webrtc.RTCPFeedback{
		{Type: "goog-remb"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
	}
	videoCodec = webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000, RTCPFeedback: videoRTCPFeedback},
		PayloadType:        videoPayloadType,
	}
	audioCodec = webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2, SDPFmtpLine: "minptime=10;useinbandfec=1"},
		PayloadType:        audioPayloadType,
	}
)

func newAPI() (*webrtc.API, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterCodec(videoCodec, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, err
	}
	if err := me.RegisterCodec(audioCodec, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, registry); err != nil {
		return nil, err
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithInterceptorRegistry(registry)), nil
}

// trackKind folds content into video: both travel as video tracks.
func trackKind(kind domain.MediaKind) domain.MediaKind {
	if kind == domain.MediaKindContent {
		return domain.MediaKindVideo
	}
	return kind
}

func kindOf(t webrtc.RTPCodecType) (domain.MediaKind, bool) {
	switch t {
	case webrtc.RTPCodecTypeAudio:
		return domain.MediaKindAudio, true
	case webrtc.RTPCodecTypeVideo:
		return domain.MediaKindVideo, true
	}
	return "", false
}

func capability(kind domain.MediaKind) webrtc.RTPCodecCapability {
	if kind == domain.MediaKindAudio {
		return audioCodec.RTPCodecCapability
	}
	return videoCodec.RTPCodecCapability
}
