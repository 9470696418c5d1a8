package scouting_client

import "time"

const (
	// API Endpoints
	LoginEndpoint      = "/auth/login"
	VerifyEndpoint     = "/auth/verify"
	PingEndpoint       = "/ping"
	CurrentEndpoint    = "/scouting/current"
	AllStatusEndpoint  = "/status/All/All"
	SubmitEndpointFmt  = "/scouting/%d/%d/submit"
	ClaimEndpointFmt   = "/scouting/%s/%d/%d/state"
	AnswersEndpointFmt = "/scouting/%s/%d/%d/%s"
	StatusEndpointFmt  = "/status/%d/%d"
	RosterEndpointFmt  = "/match/%d/%s/%s"
	PollEndpointFmt    = "/poll/match/%d/%s/%s"

	// Headers
	IdentityHeader    = "x-uuid"
	ContentTypeHeader = "Content-Type"
	JSONContentType   = "application/json"

	// UnclaimScouter is the scouter value that releases a claim.
	UnclaimScouter = "__UNCLAIM__"

	// Pong is the body the reachability endpoint answers with.
	Pong = "pong"

	DefaultPingTimeout = 4 * time.Second
)
