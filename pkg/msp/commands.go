package msp

import "strconv"

// MultiWii MSP command ids.
const (
	IDENT      = 100
	STATUS     = 101
	RAW_IMU    = 102
	RC         = 105
	RAW_GPS    = 106
	ATTITUDE   = 108
	ALTITUDE   = 109
	ANALOG     = 110
	RC_TUNING  = 111
	PID        = 112
	BOX        = 113
	MISC       = 114
	BOXNAMES   = 116
	PIDNAMES   = 117
	WP         = 118
	BOXIDS     = 119
	NAV_STATUS = 121
	NAV_CONFIG = 122

	SET_RAW_RC     = 200
	SET_PID        = 202
	SET_BOX        = 203
	SET_RC_TUNING  = 204
	SET_MISC       = 207
	SET_HEAD       = 211
	SET_NAV_CONFIG = 215
	EEPROM_WRITE   = 250

	// Answered by the link itself, never written to the FC.
	STICKCOMBO  = 230
	LOCALSTATUS = 231
)

// Stick combinations for STICKCOMBO.
const (
	STICK_ARM    = 1
	STICK_DISARM = 2
)

var cmdnames = map[uint16]string{
	IDENT:          "IDENT",
	STATUS:         "STATUS",
	RAW_IMU:        "RAW_IMU",
	RC:             "RC",
	RAW_GPS:        "RAW_GPS",
	ATTITUDE:       "ATTITUDE",
	ALTITUDE:       "ALTITUDE",
	ANALOG:         "ANALOG",
	RC_TUNING:      "RC_TUNING",
	PID:            "PID",
	BOX:            "BOX",
	MISC:           "MISC",
	BOXNAMES:       "BOXNAMES",
	PIDNAMES:       "PIDNAMES",
	WP:             "WP",
	BOXIDS:         "BOXIDS",
	NAV_STATUS:     "NAV_STATUS",
	NAV_CONFIG:     "NAV_CONFIG",
	SET_RAW_RC:     "SET_RAW_RC",
	SET_PID:        "SET_PID",
	SET_BOX:        "SET_BOX",
	SET_RC_TUNING:  "SET_RC_TUNING",
	SET_MISC:       "SET_MISC",
	SET_HEAD:       "SET_HEAD",
	SET_NAV_CONFIG: "SET_NAV_CONFIG",
	EEPROM_WRITE:   "EEPROM_WRITE",
	STICKCOMBO:     "STICKCOMBO",
	LOCALSTATUS:    "LOCALSTATUS",
}

// CmdName returns a printable name for logging.
func CmdName(cmd uint16) string {
	if s, ok := cmdnames[cmd]; ok {
		return s
	}
	return "MSP_" + strconv.Itoa(int(cmd))
}
