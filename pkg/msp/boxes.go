package msp

import (
	"strings"
)

// MultiWii permanent box ids, as reported by MSP_BOXIDS.
const (
	BOXARM = iota
	BOXANGLE
	BOXHORIZON
	BOXBARO
	BOXVARIO
	BOXMAG
	BOXHEADFREE
	BOXHEADADJ
	BOXCAMSTAB
	BOXCAMTRIG
	BOXGPSHOME
	BOXGPSHOLD
	BOXPASSTHRU
	BOXBEEPERON
	BOXLEDMAX
	BOXLEDLOW
	BOXLLIGHTS
	BOXCALIB
	BOXGOV
	BOXOSD
	BOXGPSNAV
	BOXLAND
	CHECKBOXITEMS
)

var permnames = [CHECKBOXITEMS]string{
	BOXARM:      "ARM",
	BOXANGLE:    "ANGLE",
	BOXHORIZON:  "HORIZON",
	BOXBARO:     "BARO",
	BOXVARIO:    "VARIO",
	BOXMAG:      "MAG",
	BOXHEADFREE: "HEADFREE",
	BOXHEADADJ:  "HEADADJ",
	BOXCAMSTAB:  "CAMSTAB",
	BOXCAMTRIG:  "CAMTRIG",
	BOXGPSHOME:  "GPS HOME",
	BOXGPSHOLD:  "GPS HOLD",
	BOXPASSTHRU: "PASSTHRU",
	BOXBEEPERON: "BEEPER",
	BOXLEDMAX:   "LEDMAX",
	BOXLEDLOW:   "LEDLOW",
	BOXLLIGHTS:  "LLIGHTS",
	BOXCALIB:    "CALIB",
	BOXGOV:      "GOVERNOR",
	BOXOSD:      "OSD SW",
	BOXGPSNAV:   "MISSION",
	BOXLAND:     "LAND",
}

// BoxName returns the name of a permanent box id, or "" if unknown.
func BoxName(id uint8) string {
	if int(id) < len(permnames) {
		return permnames[id]
	}
	return ""
}

// FormatBoxes lists the boxes set in a status flag word; bit i of flag is
// the box at index i of ids.
func FormatBoxes(flag uint32, ids []uint8) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 31 {
			break
		}
		if flag&(1<<uint(i)) != 0 {
			if sb.Len() > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(BoxName(id))
		}
	}
	return sb.String()
}
