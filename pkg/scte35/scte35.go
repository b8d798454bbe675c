// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package scte35 creates and inspects SCTE-35 splice_insert payloads.
//
// The stitcher only needs two things from SCTE-35 binary messages:
// building realistic cues for the demo endpoints, and recovering the
// break duration from cues that carry one when the textual playlist
// marker does not.
package scte35

import (
	"encoding/base64"
	"errors"

	"github.com/Comcast/gots/v2"
	"github.com/Comcast/gots/v2/scte35"
)

const (
	// SchemeIDURIBin is the DASH EventStream scheme for binary SCTE-35.
	SchemeIDURIBin = "urn:scte:scte35:2013:bin"
	// SchemeIDURIXML is the DASH EventStream scheme for XML SCTE-35.
	SchemeIDURIXML = "urn:scte:scte35:2013:xml"

	// pts90kHz is the SCTE-35 time base in ticks per second.
	pts90kHz = 90000
)

// SpliceInsertParams describes a splice_insert command.
type SpliceInsertParams struct {
	PTSTime                    uint64
	Duration                   uint64
	SpliceEventID              uint32
	Tier                       uint16
	UniqueProgramID            uint16
	AvailNum                   uint8
	AvailsExpected             uint8
	SpliceEventCancelIndicator bool
	OutOfNetworkIndicator      bool
	SpliceImmediateFlag        bool
	AutoReturn                 bool
}

// CreateSpliceInsertPayload creates a SCTE-35 splice_info_section including CRC.
func CreateSpliceInsertPayload(p SpliceInsertParams) []byte {
	s := scte35.CreateSCTE35()
	s.SetTier(p.Tier)
	cmd := scte35.CreateSpliceInsertCommand()
	cmd.SetUniqueProgramId(p.UniqueProgramID)
	cmd.SetEventID(p.SpliceEventID)
	cmd.SetAvailNum(p.AvailNum)
	cmd.SetAvailsExpected(p.AvailsExpected)
	cmd.SetIsEventCanceled(p.SpliceEventCancelIndicator)
	if p.Duration != 0 {
		cmd.SetHasDuration(true)
		cmd.SetDuration(gots.PTS(p.Duration))
		cmd.SetIsAutoReturn(p.AutoReturn)
	}
	cmd.SetHasPTS(true)
	cmd.SetPTS(gots.PTS(p.PTSTime))
	cmd.SetIsOut(p.OutOfNetworkIndicator)
	cmd.SetSpliceImmediate(p.SpliceImmediateFlag)
	s.SetCommandInfo(cmd)
	return s.UpdateData()
}

// CreateOutCue builds a base64-encoded splice_insert cue-out message
// with the given break duration, as carried by #EXT-OATCLS-SCTE35 lines.
func CreateOutCue(eventID uint32, durationS float64) string {
	payload := CreateSpliceInsertPayload(SpliceInsertParams{
		PTSTime:               0,
		Duration:              uint64(durationS * pts90kHz),
		SpliceEventID:         eventID,
		Tier:                  4095,
		OutOfNetworkIndicator: true,
		AutoReturn:            true,
	})
	return base64.StdEncoding.EncodeToString(payload)
}

// SpliceInsertDuration parses a base64-encoded SCTE-35 message and
// returns the break duration in seconds from its splice_insert command.
// The second return is false when the message has no usable duration.
func SpliceInsertDuration(b64 string) (float64, bool) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return 0, false
	}
	sec, err := parseSpliceInsert(data)
	if err != nil {
		return 0, false
	}
	return sec, true
}

func parseSpliceInsert(data []byte) (float64, error) {
	msg, err := scte35.NewSCTE35(data)
	if err != nil {
		return 0, err
	}
	if msg.Command() != scte35.SpliceInsert {
		return 0, errors.New("not a splice_insert command")
	}
	cmd, ok := msg.CommandInfo().(scte35.SpliceInsertCommand)
	if !ok || !cmd.HasDuration() {
		return 0, errors.New("splice_insert without duration")
	}
	return float64(cmd.Duration()) / pts90kHz, nil
}
