package negotiation

import (
	"fmt"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/sdp/v3"
)

// Description is a parsed session description that keeps its text form.
type Description struct {
	raw    string
	parsed *sdp.SessionDescription
}

func ParseDescription(raw string) (*Description, error) {
	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(raw)); err != nil {
		return nil, fmt.Errorf("parse sdp: %w", err)
	}
	return &Description{raw: raw, parsed: parsed}, nil
}

func (d *Description) String() string { return d.raw }

// HasAvailableCodec reports whether an enabled m-line of kind carries at
// least one format.
func (d *Description) HasAvailableCodec(kind domain.MediaKind) bool {
	for _, md := range d.parsed.MediaDescriptions {
		if md.MediaName.Media != string(kind) {
			continue
		}
		if md.MediaName.Port.Value != 0 && len(md.MediaName.Formats) > 0 {
			return true
		}
	}
	return false
}

// ReplaceServerIPv4 points every IPv4 connection line and the origin at ip.
func (d *Description) ReplaceServerIPv4(ip string) error {
	if d.parsed.Origin.AddressType == "IP4" {
		d.parsed.Origin.UnicastAddress = ip
	}
	replaceConnection(d.parsed.ConnectionInformation, ip)
	for _, md := range d.parsed.MediaDescriptions {
		replaceConnection(md.ConnectionInformation, ip)
	}
	out, err := d.parsed.Marshal()
	if err != nil {
		return fmt.Errorf("marshal sdp: %w", err)
	}
	d.raw = string(out)
	return nil
}

func replaceConnection(c *sdp.ConnectionInformation, ip string) {
	if c == nil || c.AddressType != "IP4" || c.Address == nil {
		return
	}
	c.Address.Address = ip
}

// MediaTypes derives the unit capabilities the description advertises.
// A video line tagged with a=content is counted as content.
func (d *Description) MediaTypes() domain.MediaTypes {
	var t domain.MediaTypes
	for _, md := range d.parsed.MediaDescriptions {
		if md.MediaName.Port.Value == 0 {
			continue
		}
		dir := direction(md)
		switch md.MediaName.Media {
		case "audio":
			t.Audio = dir
		case "video":
			if _, ok := md.Attribute("content"); ok {
				t.Content = dir
			} else {
				t.Video = dir
			}
		}
	}
	return t
}

func direction(md *sdp.MediaDescription) domain.Direction {
	for _, a := range md.Attributes {
		switch a.Key {
		case "sendrecv":
			return domain.DirectionSendRecv
		case "sendonly":
			return domain.DirectionSendOnly
		case "recvonly":
			return domain.DirectionRecvOnly
		case "inactive":
			return domain.DirectionNone
		}
	}
	return domain.DirectionSendRecv
}
