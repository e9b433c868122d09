package ua

// DiagnosticInfo carries optional verbose diagnostics alongside a
// StatusCode. Every field is optional; presence is tracked by a leading
// bit mask, and InnerDiagnosticInfo nests recursively (OPC UA Part 6).
type DiagnosticInfo struct {
	SymbolicId          int32
	HasSymbolicId       bool
	NamespaceURI        int32
	HasNamespaceURI     bool
	LocalizedText       int32
	HasLocalizedText    bool
	Locale              int32
	HasLocale           bool
	AdditionalInfo      string
	HasAdditionalInfo   bool
	InnerStatusCode     StatusCode
	HasInnerStatusCode  bool
	InnerDiagnosticInfo *DiagnosticInfo
}

const (
	diagSymbolicId      = 0x01
	diagNamespaceURI    = 0x02
	diagLocalizedText   = 0x04
	diagLocale          = 0x08
	diagAdditionalInfo  = 0x10
	diagInnerStatusCode = 0x20
	diagInnerDiagInfo   = 0x40
)

var NullDiagnosticInfo DiagnosticInfo

func (info DiagnosticInfo) mask() byte {
	var m byte
	if info.HasSymbolicId {
		m |= diagSymbolicId
	}
	if info.HasNamespaceURI {
		m |= diagNamespaceURI
	}
	if info.HasLocalizedText {
		m |= diagLocalizedText
	}
	if info.HasLocale {
		m |= diagLocale
	}
	if info.HasAdditionalInfo {
		m |= diagAdditionalInfo
	}
	if info.HasInnerStatusCode {
		m |= diagInnerStatusCode
	}
	if info.InnerDiagnosticInfo != nil {
		m |= diagInnerDiagInfo
	}
	return m
}

func (info DiagnosticInfo) encode(e *Encoder) {
	mask := info.mask()
	e.WriteByte(mask)
	if mask&diagSymbolicId != 0 {
		e.WriteInt32(info.SymbolicId)
	}
	if mask&diagNamespaceURI != 0 {
		e.WriteInt32(info.NamespaceURI)
	}
	if mask&diagLocalizedText != 0 {
		e.WriteInt32(info.LocalizedText)
	}
	if mask&diagLocale != 0 {
		e.WriteInt32(info.Locale)
	}
	if mask&diagAdditionalInfo != 0 {
		e.WriteString(info.AdditionalInfo, false)
	}
	if mask&diagInnerStatusCode != 0 {
		info.InnerStatusCode.encode(e)
	}
	if mask&diagInnerDiagInfo != 0 {
		info.InnerDiagnosticInfo.encode(e)
	}
}

func decodeDiagnosticInfo(d *Decoder) (DiagnosticInfo, error) {
	mask, err := d.ReadByte()
	if err != nil {
		return DiagnosticInfo{}, err
	}
	var info DiagnosticInfo
	if mask&diagSymbolicId != 0 {
		if info.SymbolicId, err = d.ReadInt32(); err != nil {
			return DiagnosticInfo{}, err
		}
		info.HasSymbolicId = true
	}
	if mask&diagNamespaceURI != 0 {
		if info.NamespaceURI, err = d.ReadInt32(); err != nil {
			return DiagnosticInfo{}, err
		}
		info.HasNamespaceURI = true
	}
	if mask&diagLocalizedText != 0 {
		if info.LocalizedText, err = d.ReadInt32(); err != nil {
			return DiagnosticInfo{}, err
		}
		info.HasLocalizedText = true
	}
	if mask&diagLocale != 0 {
		if info.Locale, err = d.ReadInt32(); err != nil {
			return DiagnosticInfo{}, err
		}
		info.HasLocale = true
	}
	if mask&diagAdditionalInfo != 0 {
		s, isNull, err := d.ReadString()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		if !isNull {
			info.AdditionalInfo = s
			info.HasAdditionalInfo = true
		}
	}
	if mask&diagInnerStatusCode != 0 {
		if info.InnerStatusCode, err = decodeStatusCode(d); err != nil {
			return DiagnosticInfo{}, err
		}
		info.HasInnerStatusCode = true
	}
	if mask&diagInnerDiagInfo != 0 {
		inner, err := decodeDiagnosticInfo(d)
		if err != nil {
			return DiagnosticInfo{}, err
		}
		info.InnerDiagnosticInfo = &inner
	}
	return info, nil
}
