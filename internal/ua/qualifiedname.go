package ua

// QualifiedName is a browse name: a namespace index plus a non-localized
// name, per OPC UA Part 6.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

func NewQualifiedName(ns uint16, name string) QualifiedName {
	return QualifiedName{NamespaceIndex: ns, Name: name}
}

var NullQualifiedName QualifiedName

func (q QualifiedName) IsNull() bool { return q.NamespaceIndex == 0 && q.Name == "" }

func (q QualifiedName) byteLen() int { return 2 + 4 + len(q.Name) }

func (q QualifiedName) encode(e *Encoder) {
	e.WriteUint16(q.NamespaceIndex)
	e.WriteString(q.Name, q.Name == "")
}

func decodeQualifiedName(d *Decoder) (QualifiedName, error) {
	ns, err := d.ReadUint16()
	if err != nil {
		return QualifiedName{}, err
	}
	name, isNull, err := d.ReadString()
	if err != nil {
		return QualifiedName{}, err
	}
	if isNull {
		name = ""
	}
	return QualifiedName{NamespaceIndex: ns, Name: name}, nil
}

// LocalizedText is a locale tag plus human-readable text, either of which
// may be absent. The presence of each is carried in a leading bit mask
// (OPC UA Part 6), since an all-null LocalizedText still needs one byte on the
// wire to distinguish it from a missing optional field elsewhere.
type LocalizedText struct {
	Locale string
	Text   string

	HasLocale bool
	HasText   bool
}

func NewLocalizedText(locale, text string) LocalizedText {
	return LocalizedText{Locale: locale, Text: text, HasLocale: locale != "", HasText: text != ""}
}

var NullLocalizedText LocalizedText

const (
	localizedTextLocaleMask = 0x01
	localizedTextTextMask   = 0x02
)

func (l LocalizedText) byteLen() int {
	n := 1
	if l.HasLocale {
		n += 4 + len(l.Locale)
	}
	if l.HasText {
		n += 4 + len(l.Text)
	}
	return n
}

func (l LocalizedText) encode(e *Encoder) {
	var mask byte
	if l.HasLocale {
		mask |= localizedTextLocaleMask
	}
	if l.HasText {
		mask |= localizedTextTextMask
	}
	e.WriteByte(mask)
	if l.HasLocale {
		e.WriteString(l.Locale, false)
	}
	if l.HasText {
		e.WriteString(l.Text, false)
	}
}

func decodeLocalizedText(d *Decoder) (LocalizedText, error) {
	mask, err := d.ReadByte()
	if err != nil {
		return LocalizedText{}, err
	}
	var l LocalizedText
	if mask&localizedTextLocaleMask != 0 {
		s, isNull, err := d.ReadString()
		if err != nil {
			return LocalizedText{}, err
		}
		if !isNull {
			l.Locale = s
			l.HasLocale = true
		}
	}
	if mask&localizedTextTextMask != 0 {
		s, isNull, err := d.ReadString()
		if err != nil {
			return LocalizedText{}, err
		}
		if !isNull {
			l.Text = s
			l.HasText = true
		}
	}
	return l, nil
}
