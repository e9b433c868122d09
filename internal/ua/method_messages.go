package ua

// CallMethodRequest invokes one Method node (OPC UA Part 4 Call).
type CallMethodRequest struct {
	ObjectId       NodeId
	MethodId       NodeId
	InputArguments []Variant
}

func (r CallMethodRequest) byteLen() int {
	return r.ObjectId.byteLen() + r.MethodId.byteLen() + ArrayByteLen(r.InputArguments)
}
func decodeCallMethodRequest(d *Decoder) (CallMethodRequest, error) {
	var r CallMethodRequest
	var err error
	if r.ObjectId, err = decodeNodeId(d); err != nil {
		return r, err
	}
	if r.MethodId, err = decodeNodeId(d); err != nil {
		return r, err
	}
	if r.InputArguments, err = ReadArray(d, decodeVariant); err != nil {
		return r, err
	}
	return r, nil
}

// CallMethodResult carries the callback's outcome: an overall StatusCode,
// per-argument validation results, and output values.
type CallMethodResult struct {
	StatusCode           StatusCode
	InputArgumentResults []StatusCode
	OutputArguments      []Variant
}

func (r CallMethodResult) byteLen() int {
	n := 4 + 4 + 4*len(r.InputArgumentResults) + 4 // input diagnostic infos always null (-1)
	n += ArrayByteLen(r.OutputArguments)
	return n
}
func (r CallMethodResult) encode(e *Encoder) {
	r.StatusCode.encode(e)
	if r.InputArgumentResults == nil {
		e.WriteInt32(-1)
	} else {
		e.WriteInt32(int32(len(r.InputArgumentResults)))
		for _, s := range r.InputArgumentResults {
			s.encode(e)
		}
	}
	e.WriteInt32(-1) // InputArgumentDiagnosticInfos: unused
	WriteArray(e, r.OutputArguments)
}

type CallRequest struct {
	RequestHeader RequestHeader
	MethodsToCall []CallMethodRequest
}

func DecodeCallRequest(d *Decoder) (CallRequest, error) {
	var r CallRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.MethodsToCall, err = ReadArray(d, decodeCallMethodRequest); err != nil {
		return r, err
	}
	return r, nil
}

type CallResponse struct {
	ResponseHeader ResponseHeader
	Results        []CallMethodResult
}

func (r CallResponse) ByteLen() int { return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results) }
func (r CallResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}
