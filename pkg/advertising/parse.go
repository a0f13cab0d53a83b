package advertising

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Parse walks the length-prefixed AD structures in data, stopping silently
// at the end of the buffer or at any entry that would overrun it, and
// projects the recognized ones onto a Descriptor.
func Parse(data []byte) Descriptor {
	desc := Descriptor{
		ManufacturerData: make(map[uint16][]byte),
		ServiceData:      make(map[string][]byte),
	}

	for i := 0; i < len(data); {
		length := int(data[i])
		if length < 1 {
			break
		}
		if i+1+length > len(data) {
			break
		}
		adType := data[i+1]
		adData := data[i+2 : i+1+length]

		switch adType {
		case adType16BitUUIDsIncomplete, adType16BitUUIDsComplete:
			for off := 0; off+2 <= len(adData); off += 2 {
				uuid := binary.LittleEndian.Uint16(adData[off : off+2])
				desc.ServiceUUIDs = append(desc.ServiceUUIDs, fmt.Sprintf("%04x", uuid))
			}
		case adType128BitUUIDsIncomplete, adType128BitUUIDsComplete:
			for off := 0; off+16 <= len(adData); off += 16 {
				desc.ServiceUUIDs = append(desc.ServiceUUIDs, format128BitUUID(adData[off:off+16]))
			}
		case adTypeShortLocalName, adTypeCompleteLocalName:
			desc.LocalName = decodeUTF8Lossy(adData)
		case adTypeServiceData16:
			if len(adData) >= 2 {
				uuid := fmt.Sprintf("%04x", binary.LittleEndian.Uint16(adData[0:2]))
				serviceData := make([]byte, len(adData)-2)
				copy(serviceData, adData[2:])
				desc.ServiceData[uuid] = serviceData
			}
		case adTypeManufacturerData:
			if len(adData) >= 2 {
				companyID := binary.LittleEndian.Uint16(adData[0:2])
				mfgData := make([]byte, len(adData)-2)
				copy(mfgData, adData[2:])
				desc.ManufacturerData[companyID] = mfgData
			}
		case adTypeFlags:
			// Flags are a host-stack concern; the bridge does not act on them.
		}

		i += length + 1
	}

	return desc
}

// format128BitUUID reverses a little-endian 128-bit UUID into the
// canonical 8-4-4-4-12 hex form.
func format128BitUUID(le []byte) string {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = le[15-i]
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", be[0:4], be[4:6], be[6:8], be[8:10], be[10:16])
}

// decodeUTF8Lossy decodes b as UTF-8, discarding any invalid byte sequences
// rather than failing.
func decodeUTF8Lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
