// Package comm implements the classical control channel between the
// receiver and the transmitter: a websocket carrying JSON messages, each a
// numeric code plus an optional payload, in strict request/response
// alternation driven by the receiver.
package comm

import "fmt"

// Code identifies the purpose of a control message. Codes are grouped by
// hundreds per protocol phase.
type Code int

const (
	Disconnection Code = 0

	IdentificationRequest  Code = 100
	IdentificationResponse Code = 101
	InvalidVersion         Code = 102

	InitializationRequest  Code = 110
	InitializationAccepted Code = 111
	InitializationDenied   Code = 112

	QIERequest          Code = 200
	QIEReady            Code = 201
	QIETrigger          Code = 202
	QIEEmissionStarted  Code = 203
	QIEAcquisitionEnded Code = 204
	QIEEnded            Code = 205

	PESymbolsRequest  Code = 300
	PESymbolsResponse Code = 301
	PENPhotonRequest  Code = 302
	PENPhotonResponse Code = 303
	PEFinished        Code = 304
	PEApproved        Code = 305
	PEDenied          Code = 306

	RequestPolarisationRecovery Code = 400
	PolarisationRecoveryAck     Code = 401
	EndPolarisationRecovery     Code = 402
	PolarisationRecoveryEnded   Code = 403

	ChangeParameterRequest Code = 500
	ParameterChanged       Code = 501
	ParameterRefused       Code = 502

	UnknownCommand    Code = 900
	UnexpectedCommand Code = 901
)

var codeNames = map[Code]string{
	Disconnection:               "disconnection",
	IdentificationRequest:       "identification_request",
	IdentificationResponse:      "identification_response",
	InvalidVersion:              "invalid_version",
	InitializationRequest:       "initialization_request",
	InitializationAccepted:      "initialization_accepted",
	InitializationDenied:        "initialization_denied",
	QIERequest:                  "qie_request",
	QIEReady:                    "qie_ready",
	QIETrigger:                  "qie_trigger",
	QIEEmissionStarted:          "qie_emission_started",
	QIEAcquisitionEnded:         "qie_acquisition_ended",
	QIEEnded:                    "qie_ended",
	PESymbolsRequest:            "pe_symbols_request",
	PESymbolsResponse:           "pe_symbols_response",
	PENPhotonRequest:            "pe_nphoton_request",
	PENPhotonResponse:           "pe_nphoton_response",
	PEFinished:                  "pe_finished",
	PEApproved:                  "pe_approved",
	PEDenied:                    "pe_denied",
	RequestPolarisationRecovery: "request_polarisation_recovery",
	PolarisationRecoveryAck:     "polarisation_recovery_ack",
	EndPolarisationRecovery:     "end_polarisation_recovery",
	PolarisationRecoveryEnded:   "polarisation_recovery_ended",
	ChangeParameterRequest:      "change_parameter_request",
	ParameterChanged:            "parameter_changed",
	ParameterRefused:            "parameter_refused",
	UnknownCommand:              "unknown_command",
	UnexpectedCommand:           "unexpected_command",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}
