package ua

// RequestHeader is the common prefix of every service request, carrying
// the session's authentication token and a handle the server must echo
// back in ResponseHeader (OPC UA Part 4).
type RequestHeader struct {
	AuthenticationToken NodeId
	Timestamp           DateTime
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	AuditEntryId        string
	TimeoutHint         uint32
	AdditionalHeader    ExtensionObject
}

func (h RequestHeader) byteLen() int {
	return h.AuthenticationToken.byteLen() + 8 + 4 + 4 + 4 + len(h.AuditEntryId) + 4 + h.AdditionalHeader.byteLen()
}

func (h RequestHeader) encode(e *Encoder) {
	h.AuthenticationToken.encode(e)
	e.WriteDateTime(h.Timestamp)
	e.WriteUint32(h.RequestHandle)
	e.WriteUint32(h.ReturnDiagnostics)
	e.WriteString(h.AuditEntryId, h.AuditEntryId == "")
	e.WriteUint32(h.TimeoutHint)
	h.AdditionalHeader.encode(e)
}

func decodeRequestHeader(d *Decoder) (RequestHeader, error) {
	var h RequestHeader
	var err error
	if h.AuthenticationToken, err = decodeNodeId(d); err != nil {
		return h, err
	}
	if h.Timestamp, err = d.ReadDateTime(); err != nil {
		return h, err
	}
	if h.RequestHandle, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.ReturnDiagnostics, err = d.ReadUint32(); err != nil {
		return h, err
	}
	s, isNull, err := d.ReadString()
	if err != nil {
		return h, err
	}
	if !isNull {
		h.AuditEntryId = s
	}
	if h.TimeoutHint, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.AdditionalHeader, err = decodeExtensionObject(d); err != nil {
		return h, err
	}
	return h, nil
}

// ResponseHeader is the common prefix of every service response, per
// OPC UA Part 4: it echoes RequestHandle and carries the service-level
// outcome (ServiceResult) plus optional verbose diagnostics.
type ResponseHeader struct {
	Timestamp          DateTime
	RequestHandle      uint32
	ServiceResult      StatusCode
	ServiceDiagnostics DiagnosticInfo
	StringTable        []string
	AdditionalHeader   ExtensionObject
}

// NewResponseHeader builds a ResponseHeader echoing req's handle with the
// given result and the current time; successful handlers pass ua.Good.
func NewResponseHeader(req RequestHeader, result StatusCode) ResponseHeader {
	return ResponseHeader{Timestamp: Now(), RequestHandle: req.RequestHandle, ServiceResult: result}
}

func (h ResponseHeader) byteLen() int {
	n := 8 + 4 + 4 + 1 // timestamp + handle + service result + diag mask byte
	n += ArrayByteLenFunc(h.StringTable, func(s string) int { return 4 + len(s) })
	n += h.AdditionalHeader.byteLen()
	return n
}

func (h ResponseHeader) encode(e *Encoder) {
	e.WriteDateTime(h.Timestamp)
	e.WriteUint32(h.RequestHandle)
	h.ServiceResult.encode(e)
	h.ServiceDiagnostics.encode(e)
	if h.StringTable == nil {
		e.WriteInt32(-1)
	} else {
		e.WriteInt32(int32(len(h.StringTable)))
		for _, s := range h.StringTable {
			e.WriteString(s, false)
		}
	}
	h.AdditionalHeader.encode(e)
}

func decodeResponseHeader(d *Decoder) (ResponseHeader, error) {
	var h ResponseHeader
	var err error
	if h.Timestamp, err = d.ReadDateTime(); err != nil {
		return h, err
	}
	if h.RequestHandle, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.ServiceResult, err = decodeStatusCode(d); err != nil {
		return h, err
	}
	if h.ServiceDiagnostics, err = decodeDiagnosticInfo(d); err != nil {
		return h, err
	}
	n, err := d.ArrayLen()
	if err != nil {
		return h, err
	}
	if n >= 0 {
		h.StringTable = make([]string, n)
		for i := range h.StringTable {
			s, isNull, err := d.ReadString()
			if err != nil {
				return h, err
			}
			if !isNull {
				h.StringTable[i] = s
			}
		}
	}
	if h.AdditionalHeader, err = decodeExtensionObject(d); err != nil {
		return h, err
	}
	return h, nil
}

// ServiceFault is returned in place of a normal response when a service
// handler fails: it carries only a ResponseHeader whose
// ServiceResult names the failure.
type ServiceFault struct {
	ResponseHeader ResponseHeader
}

func NewServiceFault(req RequestHeader, result StatusCode) ServiceFault {
	return ServiceFault{ResponseHeader: NewResponseHeader(req, result)}
}

func (f ServiceFault) ByteLen() int      { return f.ResponseHeader.byteLen() }
func (f ServiceFault) Encode(e *Encoder) { f.ResponseHeader.encode(e) }
func DecodeServiceFault(d *Decoder) (ServiceFault, error) {
	h, err := decodeResponseHeader(d)
	return ServiceFault{ResponseHeader: h}, err
}
