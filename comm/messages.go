package comm

import "encoding/json"

// Message is the wire format of the control channel.
type Message struct {
	Code Code            `json:"code"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IdentificationData announces the client to the server.
type IdentificationData struct {
	SerialNumber string `json:"serial_number"`
	Version      string `json:"version"`
}

// InitializationData opens a new frame.
type InitializationData struct {
	FrameUUID string `json:"frame_uuid"`
}

// SymbolsRequestData asks the transmitter to reveal the symbols at the
// given absolute indices within the current frame.
type SymbolsRequestData struct {
	Indices []int `json:"indices"`
}

// SymbolsResponseData carries revealed symbols, quadratures split so the
// payload stays plain JSON numbers.
type SymbolsResponseData struct {
	Real []float64 `json:"symbols_real"`
	Imag []float64 `json:"symbols_imag"`
}

// Symbols reassembles the complex symbols of a response.
func (d SymbolsResponseData) Symbols() []complex128 {
	n := len(d.Real)
	if len(d.Imag) < n {
		n = len(d.Imag)
	}
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(d.Real[i], d.Imag[i])
	}
	return out
}

// NewSymbolsResponseData splits complex symbols into a response payload.
func NewSymbolsResponseData(symbols []complex128) SymbolsResponseData {
	d := SymbolsResponseData{
		Real: make([]float64, len(symbols)),
		Imag: make([]float64, len(symbols)),
	}
	for i, s := range symbols {
		d.Real[i] = real(s)
		d.Imag[i] = imag(s)
	}
	return d
}

// PhotonNumberData carries the average photon number at the transmitter
// output for the current frame.
type PhotonNumberData struct {
	PhotonNumber float64 `json:"n_photon"`
}

// EstimationReportData publishes the receiver's parameter estimates back to
// the transmitter at the end of a frame.
type EstimationReportData struct {
	PhotonNumber    float64 `json:"n_photon"`
	Transmittance   float64 `json:"transmittance"`
	ExcessNoise     float64 `json:"excess_noise"`
	Eta             float64 `json:"eta"`
	KeyRate         float64 `json:"key_rate"`
	ElectronicNoise float64 `json:"electronic_noise"`
}

// ParameterChangeData asks the transmitter to change one configuration
// value between frames.
type ParameterChangeData struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
}
